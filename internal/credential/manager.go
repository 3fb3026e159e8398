package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/foxseedlab/coachcal/internal/calendar"
	"github.com/foxseedlab/coachcal/internal/settings"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// CalendarEventsScope grants read/write on events only.
const CalendarEventsScope = "https://www.googleapis.com/auth/calendar.events"

const (
	tokenPersistTimeout       = 10 * time.Second
	callbackReadHeaderTimeout = 10 * time.Second
	callbackPage              = "You can close this window."
)

type Options struct {
	Store               settings.Store
	Factory             calendar.Factory
	DefaultClientID     string
	DefaultClientSecret string
	RedirectURL         string
	AuthTimeout         time.Duration
	// Endpoint defaults to Google's OAuth endpoints.
	Endpoint oauth2.Endpoint
	// OpenBrowser defaults to the platform URL opener.
	OpenBrowser func(url string) error
}

type Manager struct {
	store               settings.Store
	factory             calendar.Factory
	defaultClientID     string
	defaultClientSecret string
	redirectURL         string
	authTimeout         time.Duration
	endpoint            oauth2.Endpoint
	openBrowser         func(url string) error

	// flowMu serializes credential acquisition so only one callback
	// listener exists at a time.
	flowMu sync.Mutex

	// generation is bumped by Disconnect. Clients built under an older
	// generation may still refresh but no longer write tokens back.
	genMu      sync.Mutex
	generation uint64
}

func NewManager(opts Options) *Manager {
	endpoint := opts.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = endpoints.Google
	}
	opener := opts.OpenBrowser
	if opener == nil {
		opener = OpenBrowser
	}
	return &Manager{
		store:               opts.Store,
		factory:             opts.Factory,
		defaultClientID:     opts.DefaultClientID,
		defaultClientSecret: opts.DefaultClientSecret,
		redirectURL:         opts.RedirectURL,
		authTimeout:         opts.AuthTimeout,
		endpoint:            endpoint,
		openBrowser:         opener,
	}
}

// Client returns a calendar client bound to the stored credential, running
// the interactive authorization first when none is stored. No network call is
// made when a credential is already stored; refreshes happen lazily and are
// written back through the tokens-updated handler.
func (m *Manager) Client(ctx context.Context) (calendar.API, error) {
	conf, err := m.oauthConfig(ctx)
	if err != nil {
		return nil, err
	}

	m.flowMu.Lock()
	tok, err := loadToken(ctx, m.store)
	if err == nil && tok == nil {
		tok, err = m.authorize(ctx, conf)
		if err == nil {
			err = saveToken(ctx, m.store, tok)
		}
	}
	gen := m.currentGeneration()
	m.flowMu.Unlock()
	if err != nil {
		return nil, err
	}

	refreshCtx := context.WithoutCancel(ctx)
	persist := func(t *oauth2.Token) { m.persistRefreshedToken(gen, t) }
	ts := newNotifyingTokenSource(conf.TokenSource(refreshCtx, tok), tok, persist)
	api, err := m.factory(ctx, oauth2.NewClient(refreshCtx, ts))
	if err != nil {
		return nil, err
	}
	return api, nil
}

// Disconnect forgets the stored credential so the next Client call starts a
// fresh authorization.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.flowMu.Lock()
	defer m.flowMu.Unlock()
	m.genMu.Lock()
	defer m.genMu.Unlock()
	m.generation++
	if err := m.store.Delete(ctx, settings.KeyGoogleTokens); err != nil {
		return fmt.Errorf("failed to clear stored credential: %w", err)
	}
	slog.Info("google credential cleared")
	return nil
}

func (m *Manager) oauthConfig(ctx context.Context) (*oauth2.Config, error) {
	clientID, err := settings.String(ctx, m.store, settings.KeyGoogleClientID, m.defaultClientID)
	if err != nil {
		return nil, err
	}
	if clientID == "" {
		return nil, &ConfigError{Reason: "missing clientId"}
	}
	clientSecret, err := settings.String(ctx, m.store, settings.KeyGoogleClientSecret, m.defaultClientSecret)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     m.endpoint,
		RedirectURL:  m.redirectURL,
		Scopes:       []string{CalendarEventsScope},
	}, nil
}

func (m *Manager) currentGeneration() uint64 {
	m.genMu.Lock()
	defer m.genMu.Unlock()
	return m.generation
}

func (m *Manager) persistRefreshedToken(gen uint64, tok *oauth2.Token) {
	m.genMu.Lock()
	defer m.genMu.Unlock()
	if gen != m.generation {
		slog.Debug("dropping refreshed google token from a disconnected client")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), tokenPersistTimeout)
	defer cancel()
	if err := mergeToken(ctx, m.store, tok); err != nil {
		slog.Error("failed to persist refreshed google token", "error", err)
		return
	}
	slog.Debug("refreshed google token persisted", "expiry", tok.Expiry)
}

type callbackResult struct {
	code  string
	state string
	err   string
}

// authorize runs the one-time browser flow. The callback listener lives only
// for the duration of this call.
func (m *Manager) authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	redirect, err := url.Parse(conf.RedirectURL)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("invalid redirect url %q", conf.RedirectURL)}
	}
	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to start oauth callback listener on %s: %w", redirect.Host, err)
	}

	effective := *redirect
	effective.Host = ln.Addr().String()
	flowConf := *conf
	flowConf.RedirectURL = effective.String()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		_, _ = w.Write([]byte(callbackPage))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case results <- callbackResult{code: q.Get("code"), state: q.Get("state"), err: q.Get("error")}:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: callbackReadHeaderTimeout}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("oauth callback listener stopped", "error", err)
		}
	}()
	defer func() {
		_ = srv.Close()
	}()

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authURL := flowConf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
	)
	slog.Info("starting google authorization", "redirect_url", flowConf.RedirectURL, "timeout", m.authTimeout)
	if err := m.openBrowser(authURL); err != nil {
		slog.Warn("failed to open browser; open the authorization url manually", "error", err, "url", authURL)
	}

	timeout := m.authTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var res callbackResult
	select {
	case res = <-results:
	case <-timer.C:
		return nil, &AuthFlowError{Reason: "timeout"}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if res.err != "" {
		return nil, &AuthFlowError{Reason: res.err}
	}
	if res.state != state {
		return nil, &AuthFlowError{Reason: "state mismatch"}
	}
	if res.code == "" {
		return nil, &AuthFlowError{Reason: "missing code"}
	}

	tok, err := flowConf.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	slog.Info("google authorization completed")
	return tok, nil
}
