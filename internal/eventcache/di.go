package eventcache

import (
	"github.com/foxseedlab/coachcal/internal/calendar"
	"github.com/foxseedlab/coachcal/internal/config"
	"github.com/foxseedlab/coachcal/internal/settings"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Cache, error) {
		cfg := do.MustInvoke[*config.Config](i)
		clients := do.MustInvoke[calendar.ClientProvider](i)
		store := do.MustInvoke[settings.Store](i)
		return New(clients, store, cfg.DefaultCalendarID, cfg.EventCacheTTL()), nil
	})
}
