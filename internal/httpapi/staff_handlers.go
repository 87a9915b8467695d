package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"kenoadmin.org/internal/auth"
	"kenoadmin.org/internal/obs"
)

type createStaffRequest struct {
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	Phone        string `json:"phone"`
	Role         string `json:"role"`
	CollectionID string `json:"collectionId"`
	DatabaseID   string `json:"databaseId"`
}

type updateStaffRequest struct {
	UserID       string  `json:"userId"`
	DocumentID   string  `json:"documentId"`
	DatabaseID   string  `json:"databaseId"`
	CollectionID string  `json:"collectionId"`
	Status       *string `json:"status"`
	FullName     *string `json:"fullName"`
	Phone        *string `json:"phone"`
	Role         *string `json:"role"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (a *API) handleStaffCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermStaffRead) {
		return
	}
	page, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := a.staff.List(r.Context(), page, limit, r.URL.Query().Get("search"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[auth.Staff]{Items: items, Total: total, Page: page, Limit: limit})
}

func (a *API) handleStaffResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/staff/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermStaffRead) {
		return
	}
	staff, err := a.staff.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, staff)
}

// handleStaffCreate provisions an identity and its staff record. Errors use
// the {error, code} body with the numeric HTTP status as code.
func (a *API) handleStaffCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermStaffInvite) {
		return
	}
	var req createStaffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeStaffError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.staff.Create(r.Context(), auth.CreateStaffInput{
		Email:        req.Email,
		FullName:     req.FullName,
		Phone:        req.Phone,
		Role:         req.Role,
		CollectionID: req.CollectionID,
		DatabaseID:   req.DatabaseID,
	})
	if err != nil {
		handleStaffError(w, r, err)
		return
	}
	a.audit(r.Context(), "staff.create", "staff", out.Document.ID, map[string]string{
		"email": out.User.Email,
		"role":  strings.TrimSpace(req.Role),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"user":     out.User,
		"document": out.Document,
	})
}

func (a *API) handleStaffUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermStaffUpdate) {
		return
	}
	var req updateStaffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeStaffError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Role != nil && strings.TrimSpace(*req.Role) != "" {
		if !a.ensurePermissions(w, r, auth.PermStaffAssignRoles, auth.PermRolesManage) {
			return
		}
	}
	doc, err := a.staff.Update(r.Context(), auth.UpdateStaffInput{
		UserID:       req.UserID,
		DocumentID:   req.DocumentID,
		DatabaseID:   req.DatabaseID,
		CollectionID: req.CollectionID,
		Status:       req.Status,
		FullName:     req.FullName,
		Phone:        req.Phone,
		Role:         req.Role,
	})
	if err != nil {
		handleStaffError(w, r, err)
		return
	}
	meta := map[string]string{"user_id": strings.TrimSpace(req.UserID)}
	if req.Status != nil {
		meta["status"] = strings.TrimSpace(*req.Status)
	}
	if req.Role != nil {
		meta["role"] = strings.TrimSpace(*req.Role)
	}
	a.audit(r.Context(), "staff.update", "staff", doc.ID, meta)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"document": doc,
	})
}

func handleStaffError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeStaffError(w, r, http.StatusBadRequest, errorMessage(err, auth.ErrInvalidInput))
	case errors.Is(err, auth.ErrConflict):
		writeStaffError(w, r, http.StatusConflict, errorMessage(err, auth.ErrConflict))
	case errors.Is(err, auth.ErrNotFound):
		writeStaffError(w, r, http.StatusNotFound, errorMessage(err, auth.ErrNotFound))
	default:
		obs.Logger().Error("staff operation failed", zap.Error(err))
		writeStaffError(w, r, http.StatusInternalServerError, err.Error())
	}
}

func writeStaffError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeErrorBody(w, r, code, map[string]any{"error": msg, "code": code})
}

// handleServiceError maps auth service sentinels for the read and venue endpoints.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, errorMessage(err, auth.ErrInvalidInput))
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, errorMessage(err, auth.ErrConflict))
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, errorMessage(err, auth.ErrNotFound))
	default:
		obs.Logger().Error("service operation failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
