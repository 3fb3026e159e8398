package credential

import (
	"github.com/foxseedlab/coachcal/internal/calendar"
	"github.com/foxseedlab/coachcal/internal/config"
	"github.com/foxseedlab/coachcal/internal/settings"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewManager(Options{
			Store:               do.MustInvoke[settings.Store](i),
			Factory:             do.MustInvoke[calendar.Factory](i),
			DefaultClientID:     cfg.GoogleClientID,
			DefaultClientSecret: cfg.GoogleClientSecret,
			RedirectURL:         cfg.GoogleOAuthRedirectURL,
			AuthTimeout:         cfg.OAuthTimeout(),
		}), nil
	})
	do.Provide(injector, func(i do.Injector) (calendar.ClientProvider, error) {
		return do.MustInvoke[*Manager](i), nil
	})
}
