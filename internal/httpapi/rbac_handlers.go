package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"kenoadmin.org/internal/auth"
	"kenoadmin.org/internal/obs"
)

type toggleResponse struct {
	RoleID       string `json:"roleId"`
	PermissionID string `json:"permissionId"`
	Granted      bool   `json:"granted"`
}

// handleRoles lists roles; ?refresh=1 bypasses the role cache.
func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermConfigRead, auth.PermRolesManage) {
		return
	}
	refresh := r.URL.Query().Get("refresh")
	roles, err := a.rbac.ListRoles(r.Context(), refresh == "1" || strings.EqualFold(refresh, "true"))
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": roles})
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermConfigRead, auth.PermRolesManage) {
		return
	}
	perms, err := a.rbac.ListPermissions(r.Context())
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": perms})
}

// handleRoleResource serves
//
//	GET    /api/roles/{id}
//	GET    /api/roles/{id}/permissions
//	PUT    /api/roles/{id}/permissions/{permissionId}
//	DELETE /api/roles/{id}/permissions/{permissionId}
//	POST   /api/roles/{id}/permissions/{permissionId}/toggle
func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/roles/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	roleID := parts[0]
	switch {
	case len(parts) == 1:
		a.getRole(w, r, roleID)
	case len(parts) == 2 && parts[1] == "permissions":
		a.listRolePermissions(w, r, roleID)
	case len(parts) == 3 && parts[1] == "permissions":
		a.mutateRolePermission(w, r, roleID, parts[2])
	case len(parts) == 4 && parts[1] == "permissions" && parts[3] == "toggle":
		a.toggleRolePermission(w, r, roleID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getRole(w http.ResponseWriter, r *http.Request, roleID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermConfigRead, auth.PermRolesManage) {
		return
	}
	role, err := a.rbac.GetRole(r.Context(), roleID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) listRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermConfigRead, auth.PermRolesManage) {
		return
	}
	grants, err := a.rbac.RolePermissions(r.Context(), roleID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roleId": roleID, "items": grants})
}

func (a *API) mutateRolePermission(w http.ResponseWriter, r *http.Request, roleID, permissionID string) {
	if r.Method != http.MethodPut && r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermRolesManage) {
		return
	}
	meta := map[string]string{"permission_id": permissionID}
	if r.Method == http.MethodDelete {
		if err := a.rbac.Revoke(r.Context(), roleID, permissionID); err != nil {
			handleRBACError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.permission.revoke", "role", roleID, meta)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	grant, err := a.rbac.Grant(r.Context(), roleID, permissionID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	a.audit(r.Context(), "rbac.permission.grant", "role", roleID, meta)
	writeJSON(w, http.StatusOK, grant)
}

func (a *API) toggleRolePermission(w http.ResponseWriter, r *http.Request, roleID, permissionID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermRolesManage) {
		return
	}
	granted, err := a.rbac.Toggle(r.Context(), roleID, permissionID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	event := "rbac.permission.revoke"
	if granted {
		event = "rbac.permission.grant"
	}
	a.audit(r.Context(), event, "role", roleID, map[string]string{"permission_id": permissionID})
	writeJSON(w, http.StatusOK, toggleResponse{RoleID: roleID, PermissionID: permissionID, Granted: granted})
}

func handleRBACError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrSystemRole):
		writeErrorBody(w, r, http.StatusConflict, map[string]any{
			"error": errorMessage(err, auth.ErrSystemRole),
			"code":  "SYSTEM_ROLE_IMMUTABLE",
		})
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, errorMessage(err, auth.ErrInvalidInput))
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, errorMessage(err, auth.ErrConflict))
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, errorMessage(err, auth.ErrNotFound))
	default:
		obs.Logger().Error("rbac operation failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "rbac operation failed")
	}
}
