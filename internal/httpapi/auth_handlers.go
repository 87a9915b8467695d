package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"kenoadmin.org/internal/auth"
	"kenoadmin.org/internal/identity"
	"kenoadmin.org/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type recoveryRequest struct {
	Email string `json:"email"`
}

type completeRecoveryRequest struct {
	UserID        string `json:"userId"`
	Secret        string `json:"secret"`
	Password      string `json:"password"`
	PasswordAgain string `json:"passwordAgain"`
}

type profileRequest struct {
	Name        *string `json:"name"`
	Password    *string `json:"password"`
	OldPassword string  `json:"oldPassword"`
}

const minPasswordLength = 8

// handleMe returns the payload resolved by withAuth.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	payload, ok := auth.PayloadFromContext(r.Context())
	if !ok {
		writeResolveError(w, r, &auth.Error{Kind: auth.KindUnauthorized, Message: "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleLogin opens a provider session and resolves it. A session that does
// not resolve is closed again.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.identity == nil || a.resolver == nil {
		writeError(w, r, http.StatusServiceUnavailable, "authentication unavailable")
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	session, err := a.identity.Login(r.Context(), email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) || errors.Is(err, identity.ErrInvalidInput) {
			a.clearAuthCookies(w)
			a.audit(r.Context(), "auth.login.failed", "identity", email, nil)
			writeErrorBody(w, r, http.StatusUnauthorized, map[string]any{
				"error": "Invalid credentials",
				"code":  auth.KindUnauthorized.Code(),
			})
			return
		}
		obs.Logger().Error("login failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	creds := identity.Credentials{Session: session.Secret}
	payload, err := a.resolver.Resolve(r.Context(), creds)
	if err != nil {
		if lerr := a.identity.Logout(r.Context(), creds); lerr != nil {
			obs.Logger().Warn("closing unresolved session failed", zap.Error(lerr))
		}
		a.denyResolution(w, r, err)
		return
	}
	obs.ObserveResolution("")

	ctx := auth.ContextWithPayload(r.Context(), payload)
	a.audit(ctx, "auth.login", "identity", payload.User.ID, map[string]string{
		"role": payload.Role.ID,
	})
	a.setSessionCookies(w, session)
	writeJSON(w, http.StatusOK, payload)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	creds := a.credentialsFromRequest(r)
	if !creds.Empty() && a.identity != nil {
		if err := a.identity.Logout(r.Context(), creds); err != nil && !errors.Is(err, identity.ErrUnauthenticated) {
			obs.Logger().Warn("provider logout failed", zap.Error(err))
		}
	}
	a.clearAuthCookies(w)
	a.audit(r.Context(), "auth.logout", "session", "", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRecovery(w http.ResponseWriter, r *http.Request) {
	if a.identity == nil {
		writeError(w, r, http.StatusServiceUnavailable, "authentication unavailable")
		return
	}
	switch r.Method {
	case http.MethodPost:
		a.startRecovery(w, r)
	case http.MethodPut:
		a.completeRecovery(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodPut)
	}
}

// startRecovery always answers 202 so callers cannot probe for accounts.
func (a *API) startRecovery(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	if err := a.identity.CreateRecovery(r.Context(), email, a.publicURL+"/reset-password"); err != nil {
		obs.Logger().Warn("password recovery not started", zap.Error(err))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
}

func (a *API) completeRecovery(w http.ResponseWriter, r *http.Request) {
	var req completeRecoveryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Secret) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid recovery link")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if req.Password != req.PasswordAgain {
		writeError(w, r, http.StatusBadRequest, "passwords do not match")
		return
	}
	err := a.identity.CompleteRecovery(r.Context(), strings.TrimSpace(req.UserID), strings.TrimSpace(req.Secret), req.Password)
	switch {
	case err == nil:
	case errors.Is(err, identity.ErrUnauthenticated), errors.Is(err, identity.ErrNotFound), errors.Is(err, identity.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "invalid or expired recovery link")
		return
	default:
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	a.audit(r.Context(), "auth.recovery.complete", "identity", req.UserID, nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleProfile lets the caller change their own name or password.
func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}
	creds, ok := auth.CredentialsFromContext(r.Context())
	if !ok || a.identity == nil {
		writeError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == nil && req.Password == nil {
		writeError(w, r, http.StatusBadRequest, "name or password is required")
		return
	}

	var (
		user identity.Identity
		err  error
	)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, r, http.StatusBadRequest, "name cannot be empty")
			return
		}
		if user, err = a.identity.UpdateName(r.Context(), creds, name); err != nil {
			handleIdentityError(w, r, err)
			return
		}
	}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
			return
		}
		if user, err = a.identity.UpdatePassword(r.Context(), creds, *req.Password, req.OldPassword); err != nil {
			handleIdentityError(w, r, err)
			return
		}
	}
	a.audit(r.Context(), "auth.profile.update", "identity", user.ID, map[string]string{
		"name_changed":     strconv.FormatBool(req.Name != nil),
		"password_changed": strconv.FormatBool(req.Password != nil),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

func handleIdentityError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "current password is incorrect or session expired")
	case errors.Is(err, identity.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, errorMessage(err, identity.ErrInvalidInput))
	case errors.Is(err, identity.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "account not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "identity operation failed")
	}
}

