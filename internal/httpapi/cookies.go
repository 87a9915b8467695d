package httpapi

import (
	"net/http"
	"strings"
	"time"

	"kenoadmin.org/internal/identity"
)

// Cookies names the cookies that may carry a provider session secret.
type Cookies struct {
	Session string
	Legacy  string
	App     string
	Secure  bool
}

// DefaultCookies returns the hosted provider's cookie names for projectID and
// the application cookie.
func DefaultCookies(projectID string) Cookies {
	base := "a_session_" + strings.ToLower(strings.TrimSpace(projectID))
	return Cookies{Session: base, Legacy: base + "_legacy", App: "keno_admin_auth"}
}

func (c Cookies) names() []string {
	out := make([]string, 0, 3)
	for _, n := range []string{c.Session, c.Legacy, c.App} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// sessionSecret returns the first non-empty session cookie value.
func (c Cookies) sessionSecret(r *http.Request) string {
	for _, name := range c.names() {
		if ck, err := r.Cookie(name); err == nil && strings.TrimSpace(ck.Value) != "" {
			return strings.TrimSpace(ck.Value)
		}
	}
	return ""
}

func (a *API) secureCookies() bool {
	return a.cookies.Secure || strings.HasPrefix(a.publicURL, "https://")
}

func (a *API) setSessionCookies(w http.ResponseWriter, s identity.Session) {
	for _, name := range []string{a.cookies.Session, a.cookies.App} {
		if name == "" {
			continue
		}
		ck := &http.Cookie{
			Name:     name,
			Value:    s.Secret,
			Path:     "/",
			HttpOnly: true,
			Secure:   a.secureCookies(),
			SameSite: http.SameSiteLaxMode,
		}
		if !s.ExpiresAt.IsZero() {
			ck.Expires = s.ExpiresAt.UTC()
		}
		http.SetCookie(w, ck)
	}
}

// clearAuthCookies expires every cookie that could carry a session.
func (a *API) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range a.cookies.names() {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   a.secureCookies(),
			SameSite: http.SameSiteLaxMode,
		})
	}
}
