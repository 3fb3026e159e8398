package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/foxseedlab/coachcal/internal/config"
	"github.com/foxseedlab/coachcal/internal/repository"
	"github.com/foxseedlab/coachcal/internal/settings"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const databaseInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()

		if cfg.DatabaseDriver == config.DatabaseDriverPostgres {
			return openPostgres(ctx, cfg.DatabaseURL)
		}
		r, err := OpenSQLite(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return r, nil
	})
	do.Provide(injector, func(i do.Injector) (settings.Store, error) {
		return do.MustInvoke[repository.Repository](i), nil
	})
}

func openPostgres(ctx context.Context, databaseURL string) (repository.Repository, error) {
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := RunMigration(ctx, p); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	return NewPostgresRepository(p), nil
}
