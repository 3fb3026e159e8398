package calendar

import (
	"github.com/foxseedlab/coachcal/internal/calendar"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (calendar.Factory, error) {
		return NewFactory(), nil
	})
}
