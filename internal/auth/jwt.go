package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nurpe/freight-quotes/internal/model"
)

type Claims struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

func (p *Parser) Parse(tokenString string) (model.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if !token.Valid {
		return model.Principal{}, ErrInvalidCredentials
	}

	username := claims.Username
	if username == "" {
		username = claims.Subject
	}
	if username == "" && claims.Name == "" {
		return model.Principal{}, fmt.Errorf("%w: token has no user", ErrInvalidCredentials)
	}
	return model.Principal{
		Username: username,
		Name:     claims.Name,
		IsAdmin:  claims.IsAdmin,
		Source:   model.PrincipalSourceJWT,
	}, nil
}

// Authenticate reads the token from the token query parameter or from the
// Authorization header, with or without the Bearer prefix.
func (p *Parser) Authenticate(r *http.Request) (model.Principal, error) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if token == "" {
		return model.Principal{}, ErrNoCredentials
	}
	return p.Parse(token)
}
