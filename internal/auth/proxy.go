package auth

import (
	"net/http"
	"strings"

	"github.com/nurpe/freight-quotes/internal/model"
)

const (
	HeaderUsername = "X-User-Username"
	HeaderName     = "X-User-Name"
	HeaderIsAdmin  = "X-User-IsAdmin"
)

// Proxy trusts identity headers set by the central interface sitting in
// front of the service.
type Proxy struct{}

func (Proxy) Authenticate(r *http.Request) (model.Principal, error) {
	username := strings.TrimSpace(r.Header.Get(HeaderUsername))
	if username == "" {
		return model.Principal{}, ErrNoCredentials
	}
	return model.Principal{
		Username: username,
		Name:     strings.TrimSpace(r.Header.Get(HeaderName)),
		IsAdmin:  r.Header.Get(HeaderIsAdmin) == "true",
		Source:   model.PrincipalSourceProxy,
	}, nil
}
