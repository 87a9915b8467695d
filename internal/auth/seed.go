package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"kenoadmin.org/internal/docstore"
	"kenoadmin.org/internal/obs"
)

// OwnerStaffID is the document id of the bootstrap owner staff record.
const OwnerStaffID = "owner_staff"

// SeedReport counts documents written and documents that already existed.
type SeedReport struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Seed writes the permission catalog, the builtin roles and their grants.
// It is idempotent: existing documents are left untouched.
func Seed(ctx context.Context, docs docstore.Store, cols Collections) (SeedReport, error) {
	var rep SeedReport
	put := func(collection, id string, data map[string]any) error {
		_, err := docs.Create(ctx, collection, id, data)
		switch {
		case err == nil:
			rep.Created++
		case errors.Is(err, docstore.ErrConflict):
			rep.Skipped++
		default:
			return err
		}
		obs.Logger().Debug("seed document", zap.String("collection", collection), zap.String("id", id), zap.Bool("created", err == nil))
		return nil
	}

	for _, p := range BuiltinPermissions {
		if err := put(cols.Permissions, p.Key, map[string]any{
			"key":         p.Key,
			"group":       p.Group,
			"description": p.Description,
		}); err != nil {
			return rep, err
		}
	}
	for _, r := range BuiltinRoles {
		if err := put(cols.Roles, r.ID, map[string]any{
			"name":        r.Name,
			"description": r.Description,
			"isSystem":    r.IsSystem,
		}); err != nil {
			return rep, err
		}
	}
	for _, r := range BuiltinRoles {
		for _, key := range r.Grants {
			if err := put(cols.RolePermissions, GrantID(r.ID, key), map[string]any{
				"roleId":       r.ID,
				"permissionId": key,
			}); err != nil {
				return rep, err
			}
		}
	}
	return rep, nil
}

// OwnerStaff describes the bootstrap administrator record.
type OwnerStaff struct {
	UserID   string
	Email    string
	FullName string
}

// SeedOwner writes the owner staff record, linked to an existing identity.
func SeedOwner(ctx context.Context, docs docstore.Store, cols Collections, owner OwnerStaff) (bool, error) {
	if strings.TrimSpace(owner.UserID) == "" {
		return false, errors.New("owner user id is required")
	}
	if owner.FullName == "" {
		owner.FullName = "Administrador Principal"
	}
	_, err := docs.Create(ctx, cols.Staff, OwnerStaffID, map[string]any{
		"userId":   owner.UserID,
		"fullName": owner.FullName,
		"email":    owner.Email,
		"role":     "owner",
		"status":   StaffActive,
	})
	if errors.Is(err, docstore.ErrConflict) {
		return false, nil
	}
	return err == nil, err
}
