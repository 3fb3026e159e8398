package boundary

import (
	"fmt"
	"time"

	"github.com/foxseedlab/coachcal/internal/config"
	"github.com/foxseedlab/coachcal/internal/dispatcher"
	"github.com/foxseedlab/coachcal/internal/eventcache"
	"github.com/foxseedlab/coachcal/internal/feed"
	"github.com/foxseedlab/coachcal/internal/reconciler"
	"github.com/foxseedlab/coachcal/internal/repository"
	"github.com/foxseedlab/coachcal/internal/settings"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Adapter, error) {
		cfg := do.MustInvoke[*config.Config](i)
		loc, err := time.LoadLocation(cfg.DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone %s: %w", cfg.DefaultTimezone, err)
		}
		return New(
			do.MustInvoke[repository.Repository](i),
			do.MustInvoke[*eventcache.Cache](i),
			do.MustInvoke[*reconciler.Reconciler](i),
			do.MustInvoke[*dispatcher.Dispatcher](i),
			do.MustInvoke[*feed.Exporter](i),
			do.MustInvoke[settings.Store](i),
			loc,
		), nil
	})
}
