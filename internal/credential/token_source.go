package credential

import (
	"sync"

	"golang.org/x/oauth2"
)

// TokenHandler receives every token that differs from the last one handed out.
type TokenHandler func(tok *oauth2.Token)

// notifyingTokenSource wraps a refreshing source and emits a tokens-updated
// event to a single subscriber whenever the access token changes.
type notifyingTokenSource struct {
	base      oauth2.TokenSource
	onUpdated TokenHandler

	mu   sync.Mutex
	last string
}

func newNotifyingTokenSource(base oauth2.TokenSource, initial *oauth2.Token, onUpdated TokenHandler) *notifyingTokenSource {
	s := &notifyingTokenSource{base: base, onUpdated: onUpdated}
	if initial != nil {
		s.last = initial.AccessToken
	}
	return s
}

func (s *notifyingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	changed := tok.AccessToken != s.last
	if changed {
		s.last = tok.AccessToken
	}
	s.mu.Unlock()
	if changed && s.onUpdated != nil {
		s.onUpdated(tok)
	}
	return tok, nil
}
