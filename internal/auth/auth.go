package auth

import (
	"errors"
	"net/http"

	"github.com/nurpe/freight-quotes/internal/model"
)

var (
	// ErrNoCredentials means the request carries nothing this authenticator
	// understands; a Chain moves on to the next one.
	ErrNoCredentials      = errors.New("no credentials")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Authenticator interface {
	Authenticate(r *http.Request) (model.Principal, error)
}

// Chain tries each authenticator in order. The first one that recognises the
// request decides; if none does the request is rejected as missing
// credentials.
type Chain []Authenticator

func (c Chain) Authenticate(r *http.Request) (model.Principal, error) {
	for _, a := range c {
		principal, err := a.Authenticate(r)
		if err == nil {
			return principal, nil
		}
		if !errors.Is(err, ErrNoCredentials) {
			return model.Principal{}, err
		}
	}
	return model.Principal{}, ErrMissingCredentials
}
