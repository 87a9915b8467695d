package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kenoadmin.org/internal/audit"
	"kenoadmin.org/internal/auth"
	"kenoadmin.org/internal/docstore"
	"kenoadmin.org/internal/identity"
	"kenoadmin.org/internal/obs"
)

const serviceName = "keno-admin-api"

// ReadyProbe pings the document store.
type ReadyProbe struct {
	Store docstore.Store
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	return rp.Store.Ping(ctx)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// Services are the domain services behind the HTTP layer.
type Services struct {
	Resolver *auth.Resolver
	Identity identity.Provider
	RBAC     *auth.RBACService
	Staff    *auth.StaffService
	Venues   *auth.VenueService
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe readinessChecker
	version    string

	resolver *auth.Resolver
	identity identity.Provider
	rbac     *auth.RBACService
	staff    *auth.StaffService
	venues   *auth.VenueService

	cookies     Cookies
	publicURL   string
	corsOrigins []string
	rateBurst   int
	ratePerSec  float64
}

type Option func(*API)

func WithCookies(c Cookies) Option {
	return func(a *API) { a.cookies = c }
}

// WithPublicURL sets the externally visible URL used in recovery links and
// to decide whether cookies are marked Secure.
func WithPublicURL(u string) Option {
	return func(a *API) { a.publicURL = strings.TrimRight(strings.TrimSpace(u), "/") }
}

func WithCORSOrigins(origins ...string) Option {
	return func(a *API) { a.corsOrigins = origins }
}

// WithRateLimit configures the per-IP token bucket. burst <= 0 disables it.
func WithRateLimit(burst int, perSecond float64) Option {
	return func(a *API) {
		a.rateBurst = burst
		a.ratePerSec = perSecond
	}
}

func New(rp readinessChecker, version string, svc Services, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		resolver:   svc.Resolver,
		identity:   svc.Identity,
		rbac:       svc.RBAC,
		staff:      svc.Staff,
		venues:     svc.Venues,
		cookies:    DefaultCookies(""),
		rateBurst:  20,
		ratePerSec: 10,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	// session
	a.mux.HandleFunc("/api/auth/me", a.handleMe)
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/api/auth/recovery", a.handleRecovery)
	a.mux.HandleFunc("/api/auth/profile", a.handleProfile)

	// staff
	a.mux.HandleFunc("/api/staff", a.handleStaffCollection)
	a.mux.HandleFunc("/api/staff/create", a.handleStaffCreate)
	a.mux.HandleFunc("/api/staff/update", a.handleStaffUpdate)
	a.mux.HandleFunc("/api/staff/", a.handleStaffResource)

	// roles and permissions
	a.mux.HandleFunc("/api/roles", a.handleRoles)
	a.mux.HandleFunc("/api/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/api/permissions", a.handlePermissions)

	// venues
	a.mux.HandleFunc("/api/venues", a.handleVenuesCollection)
	a.mux.HandleFunc("/api/venues/", a.handleVenueResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the mux wrapped with the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.withAuth(a.mux)
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, 1<<20)
	if a.rateBurst > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSec)
	}
	h = CORS(h, a.corsOrigins...)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if a.readyProbe != nil {
		if err := a.readyProbe.Check(r.Context()); err != nil {
			obs.SetReady(false)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeErrorBody(w, r, code, map[string]any{"error": msg})
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, code int, payload map[string]any) {
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// pageParams reads page/limit query parameters; limit is clamped by the store.
func pageParams(r *http.Request) (int, int, error) {
	page, err := parsePositiveInt(r.URL.Query().Get("page"), 1, "page")
	if err != nil {
		return 0, 0, err
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), docstore.DefaultLimit, "limit")
	if err != nil {
		return 0, 0, err
	}
	if limit > docstore.MaxLimit {
		limit = docstore.MaxLimit
	}
	return page, limit, nil
}

func parsePositiveInt(raw string, def int, name string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 1 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return val, nil
}

// errorMessage strips the sentinel prefix from a wrapped service error.
func errorMessage(err error, sentinels ...error) string {
	msg := err.Error()
	for _, s := range sentinels {
		msg = strings.TrimPrefix(msg, s.Error()+": ")
	}
	return msg
}

func (a *API) audit(ctx context.Context, event, resourceType, resourceID string, meta map[string]string) {
	fields := map[string]any{
		"resource_type": resourceType,
		"resource_id":   resourceID,
	}
	for k, v := range meta {
		fields[k] = v
	}
	_ = audit.LogEvent(ctx, event, fields)
}
