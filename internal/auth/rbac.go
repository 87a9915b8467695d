package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"kenoadmin.org/internal/docstore"
)

// RoleCache holds the role list for settings screens. It is owned by its
// caller and never consulted by the Resolver.
type RoleCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	roles   []Role
	expires time.Time
	loaded  bool
}

// NewRoleCache returns a cache whose entries expire after ttl. A ttl <= 0
// keeps entries until Invalidate or a forced refresh.
func NewRoleCache(ttl time.Duration) *RoleCache {
	return &RoleCache{ttl: ttl, now: time.Now}
}

// Get returns cached roles or calls load when empty, expired or forced.
func (c *RoleCache) Get(ctx context.Context, force bool, load func(context.Context) ([]Role, error)) ([]Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !force && c.loaded && (c.ttl <= 0 || c.now().Before(c.expires)) {
		return append([]Role(nil), c.roles...), nil
	}
	roles, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.roles = roles
	c.loaded = true
	c.expires = c.now().Add(c.ttl)
	return append([]Role(nil), roles...), nil
}

func (c *RoleCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles = nil
	c.loaded = false
}

// RBACService manages roles, the permission catalog and grants.
type RBACService struct {
	docs  docstore.Store
	cols  Collections
	cache *RoleCache
}

type RBACOption func(*RBACService) error

func WithRBACCollections(c Collections) RBACOption {
	return func(s *RBACService) error {
		s.cols = c
		return nil
	}
}

func WithRoleCache(c *RoleCache) RBACOption {
	return func(s *RBACService) error {
		s.cache = c
		return nil
	}
}

func NewRBACService(docs docstore.Store, opts ...RBACOption) (*RBACService, error) {
	if docs == nil {
		return nil, errors.New("document store is required")
	}
	s := &RBACService{docs: docs, cols: DefaultCollections()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ListRoles returns roles ordered by name, through the cache when configured.
func (s *RBACService) ListRoles(ctx context.Context, forceRefresh bool) ([]Role, error) {
	if s.cache == nil {
		return s.loadRoles(ctx)
	}
	return s.cache.Get(ctx, forceRefresh, s.loadRoles)
}

func (s *RBACService) loadRoles(ctx context.Context) ([]Role, error) {
	list, err := s.docs.List(ctx, s.cols.Roles, docstore.NewQuery().OrderAsc("name").WithLimit(docstore.MaxLimit))
	if err != nil {
		return nil, err
	}
	roles := make([]Role, 0, len(list.Documents))
	for _, d := range list.Documents {
		roles = append(roles, roleFromDoc(d))
	}
	return roles, nil
}

func (s *RBACService) GetRole(ctx context.Context, roleID string) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	d, err := s.docs.Get(ctx, s.cols.Roles, roleID)
	if err != nil {
		return Role{}, mapStoreError(err, "role "+roleID)
	}
	return roleFromDoc(d), nil
}

// ListPermissions returns the catalog ordered by group.
func (s *RBACService) ListPermissions(ctx context.Context) ([]Permission, error) {
	list, err := s.docs.List(ctx, s.cols.Permissions, docstore.NewQuery().OrderAsc("group").WithLimit(docstore.MaxLimit))
	if err != nil {
		return nil, err
	}
	out := make([]Permission, 0, len(list.Documents))
	for _, d := range list.Documents {
		out = append(out, permissionFromDoc(d))
	}
	return out, nil
}

// RolePermissions lists the grants of a role.
func (s *RBACService) RolePermissions(ctx context.Context, roleID string) ([]RolePermission, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	list, err := s.docs.List(ctx, s.cols.RolePermissions,
		docstore.NewQuery(docstore.Equal("roleId", roleID)).WithLimit(docstore.MaxLimit))
	if err != nil {
		return nil, err
	}
	out := make([]RolePermission, 0, len(list.Documents))
	for _, d := range list.Documents {
		out = append(out, grantFromDoc(d))
	}
	return out, nil
}

// Grant adds permissionID to roleID. An existing grant is returned unchanged.
func (s *RBACService) Grant(ctx context.Context, roleID, permissionID string) (RolePermission, error) {
	roleID, permissionID, err := s.checkMutation(ctx, roleID, permissionID)
	if err != nil {
		return RolePermission{}, err
	}
	existing, err := s.findGrants(ctx, roleID, permissionID)
	if err != nil {
		return RolePermission{}, err
	}
	if len(existing) > 0 {
		return existing[0], nil
	}
	return s.createGrant(ctx, roleID, permissionID)
}

// Revoke removes every grant of permissionID to roleID. Absent grants are a no-op.
func (s *RBACService) Revoke(ctx context.Context, roleID, permissionID string) error {
	roleID, permissionID, err := s.checkMutation(ctx, roleID, permissionID)
	if err != nil {
		return err
	}
	existing, err := s.findGrants(ctx, roleID, permissionID)
	if err != nil {
		return err
	}
	return s.deleteGrants(ctx, existing)
}

// Toggle grants when absent and revokes when present, re-reading the store
// each time. It reports whether the grant exists afterwards.
func (s *RBACService) Toggle(ctx context.Context, roleID, permissionID string) (bool, error) {
	roleID, permissionID, err := s.checkMutation(ctx, roleID, permissionID)
	if err != nil {
		return false, err
	}
	existing, err := s.findGrants(ctx, roleID, permissionID)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, s.deleteGrants(ctx, existing)
	}
	if _, err := s.createGrant(ctx, roleID, permissionID); err != nil {
		return false, err
	}
	return true, nil
}

// checkMutation validates ids and rejects unknown or system roles.
func (s *RBACService) checkMutation(ctx context.Context, roleID, permissionID string) (string, string, error) {
	roleID = strings.TrimSpace(roleID)
	permissionID = strings.TrimSpace(permissionID)
	if roleID == "" || permissionID == "" {
		return "", "", fmt.Errorf("%w: role_id and permission_id are required", ErrInvalidInput)
	}
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return "", "", err
	}
	if role.IsSystem {
		return "", "", fmt.Errorf("%w: %s", ErrSystemRole, role.Name)
	}
	if _, err := s.docs.Get(ctx, s.cols.Permissions, permissionID); err != nil {
		return "", "", mapStoreError(err, "permission "+permissionID)
	}
	return roleID, permissionID, nil
}

func (s *RBACService) findGrants(ctx context.Context, roleID, permissionID string) ([]RolePermission, error) {
	list, err := s.docs.List(ctx, s.cols.RolePermissions, docstore.NewQuery(
		docstore.Equal("roleId", roleID),
		docstore.Equal("permissionId", permissionID),
	).WithLimit(docstore.MaxLimit))
	if err != nil {
		return nil, err
	}
	out := make([]RolePermission, 0, len(list.Documents))
	for _, d := range list.Documents {
		out = append(out, grantFromDoc(d))
	}
	return out, nil
}

func (s *RBACService) createGrant(ctx context.Context, roleID, permissionID string) (RolePermission, error) {
	d, err := s.docs.Create(ctx, s.cols.RolePermissions, GrantID(roleID, permissionID), map[string]any{
		"roleId":       roleID,
		"permissionId": permissionID,
	})
	if errors.Is(err, docstore.ErrConflict) {
		// a concurrent grant won; return its row
		existing, ferr := s.findGrants(ctx, roleID, permissionID)
		if ferr == nil && len(existing) > 0 {
			return existing[0], nil
		}
	}
	if err != nil {
		return RolePermission{}, mapStoreError(err, "grant")
	}
	return grantFromDoc(d), nil
}

func (s *RBACService) deleteGrants(ctx context.Context, grants []RolePermission) error {
	for _, g := range grants {
		if err := s.docs.Delete(ctx, s.cols.RolePermissions, g.ID); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
	}
	return nil
}

// GrantID is the document id of a grant: "<role>_<permission>", or empty
// (store-generated) when that would exceed the provider's 36-character id limit.
func GrantID(roleID, permissionID string) string {
	id := roleID + "_" + permissionID
	if len(id) > 36 {
		return ""
	}
	return id
}

func roleFromDoc(d docstore.Document) Role {
	return Role{
		ID:          d.ID,
		Name:        d.String("name"),
		Description: d.String("description"),
		IsSystem:    d.Bool("isSystem"),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func grantFromDoc(d docstore.Document) RolePermission {
	return RolePermission{
		ID:           d.ID,
		RoleID:       d.String("roleId"),
		PermissionID: d.String("permissionId"),
		CreatedAt:    d.CreatedAt,
	}
}

// mapStoreError translates docstore sentinels into auth sentinels.
func mapStoreError(err error, what string) error {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, docstore.ErrConflict):
		return fmt.Errorf("%w: %s", ErrConflict, what)
	case errors.Is(err, docstore.ErrInvalidInput):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return err
}
