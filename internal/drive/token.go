package drive

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// defaultTokenURL is the OAuth token endpoint used to exchange the
// refresh token for access tokens.
const defaultTokenURL = "https://oauth2.googleapis.com/token"

// TokenConfig holds the OAuth client credentials and refresh token used
// to mint access tokens for remote calls.
type TokenConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	// TokenURL overrides the token endpoint. Empty means the default.
	TokenURL string
}

// NewHTTPClient returns an http.Client that attaches a bearer token to
// every request, refreshing it as needed. When the provider rotates the
// refresh token, onRotate is called with the new value so it can be
// persisted; onRotate may be nil.
//
// Refresh failures surface on the request as *oauth2.RetrieveError,
// which Client.do maps to *AuthError.
func NewHTTPClient(ctx context.Context, cfg TokenConfig, onRotate func(token string)) *http.Client {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}

	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	rotating := &rotatingSource{
		src:      src,
		last:     cfg.RefreshToken,
		onRotate: onRotate,
	}

	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, rotating))
}

// rotatingSource wraps a token source and reports refresh token rotation
// to a callback. Some providers issue a new refresh token on every
// exchange and invalidate the old one; losing the new value would strand
// the client at the next restart.
type rotatingSource struct {
	src      oauth2.TokenSource
	onRotate func(token string)

	mu   sync.Mutex
	last string
}

func (s *rotatingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	rotated := tok.RefreshToken != "" && tok.RefreshToken != s.last
	if rotated {
		s.last = tok.RefreshToken
	}
	s.mu.Unlock()

	if rotated && s.onRotate != nil {
		s.onRotate(tok.RefreshToken)
	}

	return tok, nil
}
