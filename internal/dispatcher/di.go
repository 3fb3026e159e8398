package dispatcher

import (
	"github.com/foxseedlab/coachcal/internal/config"
	"github.com/foxseedlab/coachcal/internal/credential"
	"github.com/foxseedlab/coachcal/internal/eventcache"
	"github.com/foxseedlab/coachcal/internal/reconciler"
	"github.com/foxseedlab/coachcal/internal/repository"
	"github.com/foxseedlab/coachcal/internal/settings"
	"github.com/foxseedlab/coachcal/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Dispatcher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return New(Options{
			Sessions:           do.MustInvoke[repository.Repository](i),
			Reconciler:         do.MustInvoke[*reconciler.Reconciler](i),
			Credentials:        do.MustInvoke[*credential.Manager](i),
			Cache:              do.MustInvoke[*eventcache.Cache](i),
			Store:              do.MustInvoke[settings.Store](i),
			DefaultMinInterval: cfg.DefaultMinInterval(),
			Notifier:           do.MustInvoke[webhook.Sender](i),
		}), nil
	})
}
