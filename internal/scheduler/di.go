package scheduler

import (
	"fmt"
	"time"

	"github.com/foxseedlab/coachcal/internal/config"
	"github.com/foxseedlab/coachcal/internal/dispatcher"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Scheduler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		loc, err := time.LoadLocation(cfg.DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone %s: %w", cfg.DefaultTimezone, err)
		}
		return New(do.MustInvoke[*dispatcher.Dispatcher](i), cfg.SendAllSchedule, cfg.SendAllHorizon(), loc)
	})
}
