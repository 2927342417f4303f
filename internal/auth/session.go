package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/nurpe/freight-quotes/internal/model"
	"github.com/nurpe/freight-quotes/internal/portal"
)

const HeaderSessionToken = "X-Session-Token"

// Session accepts portal session tokens. Accepted tokens are remembered for
// the cache TTL so that every request does not reach the portal.
type Session struct {
	verifier portal.Verifier
	cache    *cache.Cache
	timeout  time.Duration
}

func NewSession(verifier portal.Verifier, ttl time.Duration) *Session {
	return &Session{
		verifier: verifier,
		cache:    cache.New(ttl, 2*ttl),
		timeout:  10 * time.Second,
	}
}

func (s *Session) Authenticate(r *http.Request) (model.Principal, error) {
	token := strings.TrimSpace(r.Header.Get(HeaderSessionToken))
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("sessionToken"))
	}
	if token == "" {
		return model.Principal{}, ErrNoCredentials
	}

	if cached, ok := s.cache.Get(token); ok {
		return cached.(model.Principal), nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	result, err := s.verifier.VerifySession(ctx, token)
	if err != nil {
		return model.Principal{}, fmt.Errorf("verify session: %w", err)
	}
	if !result.Valid {
		if result.Message != "" {
			return model.Principal{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, result.Message)
		}
		return model.Principal{}, ErrInvalidCredentials
	}

	principal := model.Principal{Username: "portal", Source: model.PrincipalSourceSession}
	if result.User != nil {
		principal.Username = result.User.Username
		principal.Name = result.User.Name
		principal.IsAdmin = result.User.IsAdmin
	}
	s.cache.SetDefault(token, principal)
	return principal, nil
}
