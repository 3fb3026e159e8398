package reconciler

import (
	"github.com/foxseedlab/coachcal/internal/calendar"
	"github.com/foxseedlab/coachcal/internal/config"
	"github.com/foxseedlab/coachcal/internal/repository"
	"github.com/foxseedlab/coachcal/internal/settings"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Reconciler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		clients := do.MustInvoke[calendar.ClientProvider](i)
		store := do.MustInvoke[settings.Store](i)
		return New(repo, clients, store, Defaults{
			CalendarID: cfg.DefaultCalendarID,
			Timezone:   cfg.DefaultTimezone,
			CoachName:  cfg.DefaultCoachName,
		}), nil
	})
}
