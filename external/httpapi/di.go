package httpapi

import (
	"github.com/foxseedlab/coachcal/internal/boundary"
	"github.com/foxseedlab/coachcal/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewServer(cfg.HTTPListenAddr, do.MustInvoke[*boundary.Adapter](i)), nil
	})
}
