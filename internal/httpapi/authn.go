package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"kenoadmin.org/internal/auth"
	"kenoadmin.org/internal/identity"
	"kenoadmin.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/api/auth/login",
	"/api/auth/logout",
	"/api/auth/recovery",
}

// withAuth resolves the caller for every /api/ route except the public ones.
// Any resolution failure clears the session cookies.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || !strings.HasPrefix(r.URL.Path, "/api/") || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if a.resolver == nil {
			writeError(w, r, http.StatusServiceUnavailable, "authorization unavailable")
			return
		}

		creds := a.credentialsFromRequest(r)
		payload, err := a.resolver.Resolve(r.Context(), creds)
		if err != nil {
			a.denyResolution(w, r, err)
			return
		}
		obs.ObserveResolution("")

		ctx := auth.ContextWithPayload(r.Context(), payload)
		ctx = auth.ContextWithCredentials(ctx, creds)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// credentialsFromRequest prefers a bearer token over session cookies.
func (a *API) credentialsFromRequest(r *http.Request) identity.Credentials {
	if token, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
		return identity.Credentials{JWT: token}
	}
	return identity.Credentials{Session: a.cookies.sessionSecret(r)}
}

func (a *API) denyResolution(w http.ResponseWriter, r *http.Request, err error) {
	kind, ok := auth.KindOf(err)
	if !ok {
		kind = auth.KindInternal
	}
	obs.ObserveResolution(kind.Code())
	a.clearAuthCookies(w)
	a.audit(r.Context(), "auth.denied", "path", r.URL.Path, map[string]string{
		"code": kind.Code(),
	})
	writeResolveError(w, r, err)
}

// writeResolveError renders {error, code, status?}; internal failures carry
// only the message.
func writeResolveError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *auth.Error
	if !errors.As(err, &ae) {
		ae = &auth.Error{Kind: auth.KindInternal, Message: err.Error()}
	}
	body := map[string]any{"error": ae.Message}
	if ae.Kind != auth.KindInternal {
		body["code"] = ae.Kind.Code()
	}
	if ae.Status != "" {
		body["status"] = ae.Status
	}
	writeErrorBody(w, r, ae.Kind.HTTPStatus(), body)
}

// ensurePermissions passes when the caller holds at least one of keys.
func (a *API) ensurePermissions(w http.ResponseWriter, r *http.Request, keys ...string) bool {
	gate := auth.GateFromContext(r.Context())
	if gate.Loading() {
		writeErrorBody(w, r, http.StatusUnauthorized, map[string]any{
			"error": "Unauthorized",
			"code":  auth.KindUnauthorized.Code(),
		})
		return false
	}
	if !gate.HasAnyPermission(keys...) {
		a.audit(r.Context(), "auth.forbidden", "path", r.URL.Path, map[string]string{
			"required": strings.Join(keys, ","),
		})
		writeErrorBody(w, r, http.StatusForbidden, map[string]any{
			"error":    "Forbidden",
			"code":     "FORBIDDEN",
			"required": keys,
		})
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
