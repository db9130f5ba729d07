// Package auth gates admin pages and API writes behind HTTP basic auth.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync/atomic"
)

// Realm is sent in the WWW-Authenticate challenge.
const Realm = "Secure Area"

// Config holds the credentials. Auth is disabled unless both are set.
type Config struct {
	User     string
	Password string
}

func (c Config) Enabled() bool {
	return c.User != "" && c.Password != ""
}

// Gate checks basic-auth credentials on protected requests.
type Gate struct {
	config   Config
	protect  func(*http.Request) bool
	failures int64
}

// NewGate creates a gate. A nil protect function uses ProtectAdminAndWrites.
func NewGate(config Config, protect func(*http.Request) bool) *Gate {
	if protect == nil {
		protect = ProtectAdminAndWrites
	}
	return &Gate{config: config, protect: protect}
}

// ProtectAdminAndWrites matches the admin view and every non-GET API call.
func ProtectAdminAndWrites(r *http.Request) bool {
	if r.URL.Path == "/admin" || strings.HasPrefix(r.URL.Path, "/admin/") {
		return true
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return r.Method != http.MethodGet && r.Method != http.MethodHead
	}
	return false
}

// Authorized reports whether r carries the configured credentials. Both
// fields are always compared so timing does not reveal which one failed.
func (g *Gate) Authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(g.config.User))
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(g.config.Password))
	return userOK&passOK == 1
}

// Failures returns the number of rejected requests.
func (g *Gate) Failures() int64 {
	return atomic.LoadInt64(&g.failures)
}

// Middleware returns the HTTP middleware function
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.config.Enabled() || !g.protect(r) || g.Authorized(r) {
			next.ServeHTTP(w, r)
			return
		}
		atomic.AddInt64(&g.failures, 1)
		w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}
