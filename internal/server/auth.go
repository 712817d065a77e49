package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/reliquary/reliquary/internal/config"
)

// authenticator checks HTTP basic credentials against the configured auth
// entries. Reads are open to everyone; uploads need any valid credential.
type authenticator struct {
	realm string
	creds []config.Credential
}

func newAuthenticator(realm string, creds []config.Credential) *authenticator {
	return &authenticator{realm: realm, creds: creds}
}

// authenticate matches the request credentials. Usernames compare
// case-insensitively with surrounding whitespace ignored, passwords exactly.
func (a *authenticator) authenticate(r *http.Request) (config.Credential, bool) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return config.Credential{}, false
	}
	user = strings.ToLower(strings.TrimSpace(user))
	for _, c := range a.creds {
		if strings.ToLower(c.User) != user {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(c.Password), []byte(pass)) == 1 {
			return c, true
		}
		return config.Credential{}, false
	}
	return config.Credential{}, false
}

// requirePut guards handlers that modify storage. Any valid credential may
// upload; anonymous requests get a basic auth challenge.
func (a *authenticator) requirePut(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.authenticate(r); !ok {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", a.realm))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
