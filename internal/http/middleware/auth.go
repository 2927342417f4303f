package middleware

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nurpe/freight-quotes/internal/auth"
	"github.com/nurpe/freight-quotes/internal/model"
)

const principalKey = "principal"

var deniedPage = template.Must(template.New("denied").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial; display:flex; justify-content:center; align-items:center; height:100vh; background:{{.Color}}; color:#fff; flex-direction:column; }
    a { background:#fff; color:{{.Color}}; padding:10px 20px; border-radius:10px; text-decoration:none; }
  </style>
</head>
<body>
  <h1>{{.Heading}}</h1>
  <p>{{.Message}}</p>
  <a href="{{.LoginURL}}">{{.Button}}</a>
</body>
</html>
`))

type deniedView struct {
	Title    string
	Heading  string
	Message  string
	Button   string
	Color    template.CSS
	LoginURL string
}

// Auth resolves the request principal with authenticator. Requests without
// credentials get 401, rejected credentials get 403. Browsers receive an HTML
// page pointing at loginURL, API clients a JSON body.
func Auth(authenticator auth.Authenticator, loginURL string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := authenticator.Authenticate(c.Request)
		if err == nil {
			c.Set(principalKey, principal)
			c.Next()
			return
		}

		switch {
		case errors.Is(err, auth.ErrMissingCredentials), errors.Is(err, auth.ErrNoCredentials):
			log.Warn().Str("path", c.Request.URL.Path).Msg("access denied: no credentials")
			deny(c, http.StatusUnauthorized, loginURL, deniedView{
				Title:   "Acesso Negado",
				Heading: "Acesso Não Autorizado",
				Message: "Por favor, acesse pelo sistema central.",
				Button:  "Ir para Login",
				Color:   "#667eea",
			})
		case errors.Is(err, auth.ErrInvalidCredentials):
			log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("access denied: invalid credentials")
			deny(c, http.StatusForbidden, loginURL, deniedView{
				Title:   "Sessão Expirada",
				Heading: "Sessão Expirada",
				Message: "Faça login novamente no sistema central.",
				Button:  "Fazer Login",
				Color:   "#f5576c",
			})
		default:
			log.Error().Err(err).Msg("authentication unavailable")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication unavailable"})
		}
	}
}

func MustPrincipal(c *gin.Context) (model.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return model.Principal{}, false
	}
	principal, ok := value.(model.Principal)
	return principal, ok
}

func deny(c *gin.Context, status int, loginURL string, view deniedView) {
	if !wantsHTML(c.Request) {
		c.AbortWithStatusJSON(status, gin.H{"error": view.Heading, "loginUrl": loginURL})
		return
	}
	view.LoginURL = loginURL
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = deniedPage.Execute(c.Writer, view)
	c.Abort()
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
