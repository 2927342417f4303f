package model

type PrincipalSource string

const (
	PrincipalSourceProxy   PrincipalSource = "proxy"
	PrincipalSourceJWT     PrincipalSource = "jwt"
	PrincipalSourceSession PrincipalSource = "session"
)

type Principal struct {
	Username string
	Name     string
	IsAdmin  bool
	Source   PrincipalSource
}

// DisplayName is the attribution recorded on created and updated quotes.
func (p Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Username
}
