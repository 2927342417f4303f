package portal

import (
	"context"
	"errors"
	"strings"
)

const (
	msgNoSession      = "Sessão não encontrada. Faça login pelo portal."
	msgSessionExpired = "Sua sessão expirou"
)

var ErrInvalidSession = errors.New("invalid session")

type CredentialStore interface {
	SaveCredential(ctx context.Context, token string) error
	LoadCredential(ctx context.Context) (string, error)
	ClearCredential(ctx context.Context) error
}

type Verifier interface {
	VerifySession(ctx context.Context, token string) (*Verification, error)
}

// Gate checks the stored session credential against the portal on behalf of
// the client.
type Gate struct {
	verifier Verifier
	store    CredentialStore
}

func NewGate(verifier Verifier, store CredentialStore) *Gate {
	return &Gate{verifier: verifier, store: store}
}

// Login verifies token and stores it when the portal accepts it.
func (g *Gate) Login(ctx context.Context, token string) (*Verification, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidSession
	}
	result, err := g.verifier.VerifySession(ctx, token)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return result, ErrInvalidSession
	}
	if err := g.store.SaveCredential(ctx, token); err != nil {
		return nil, err
	}
	return result, nil
}

// Verify reports whether the stored credential is still accepted. err is only
// set when the portal could not be asked; an answer of invalid comes back as
// valid false with the message to show.
func (g *Gate) Verify(ctx context.Context) (bool, string, error) {
	token, err := g.store.LoadCredential(ctx)
	if err != nil {
		return false, "", err
	}
	if token == "" {
		return false, msgNoSession, nil
	}

	result, err := g.verifier.VerifySession(ctx, token)
	if err != nil {
		return false, "", err
	}
	if !result.Valid {
		message := result.Message
		if message == "" {
			message = msgSessionExpired
		}
		return false, message, nil
	}
	return true, "", nil
}

func (g *Gate) Clear(ctx context.Context) error {
	return g.store.ClearCredential(ctx)
}
