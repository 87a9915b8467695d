package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"kenoadmin.org/internal/docstore"
	"kenoadmin.org/internal/identity"
)

func newRBACFixture(t *testing.T) (*fixture, *RBACService) {
	t.Helper()
	return rbacFixture(t, newFixture())
}

func rbacFixture(t *testing.T, f *fixture) (*fixture, *RBACService) {
	t.Helper()
	f.addRole(t, "owner", "Owner", true)
	f.addRole(t, "vendor", "Vendedor", false)
	f.addPermission(t, PermTicketsPay, PermTicketsPay, "KENO")
	f.addPermission(t, PermStaffRead, PermStaffRead, "STAFF")
	svc, err := NewRBACService(f.docs)
	if err != nil {
		t.Fatalf("NewRBACService: %v", err)
	}
	return f, svc
}

func TestToggleParity(t *testing.T) {
	f, svc := newRBACFixture(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		present, err := svc.Toggle(ctx, "vendor", PermTicketsPay)
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		wantPresent := i%2 == 1
		if present != wantPresent {
			t.Fatalf("toggle %d: present=%v want %v", i, present, wantPresent)
		}
		want := 0
		if wantPresent {
			want = 1
		}
		if n := f.countGrants(t, "vendor", PermTicketsPay); n != want {
			t.Fatalf("toggle %d: %d grant rows, want %d", i, n, want)
		}
	}
}

func TestGrantIsIdempotent(t *testing.T) {
	f, svc := newRBACFixture(t)
	ctx := context.Background()
	first, err := svc.Grant(ctx, "vendor", PermStaffRead)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if first.ID != "vendor_STAFF_READ" || first.RoleID != "vendor" || first.PermissionID != PermStaffRead {
		t.Fatalf("unexpected grant %+v", first)
	}
	second, err := svc.Grant(ctx, "vendor", PermStaffRead)
	if err != nil {
		t.Fatalf("second Grant: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing grant, got %+v", second)
	}
	if n := f.countGrants(t, "vendor", PermStaffRead); n != 1 {
		t.Fatalf("expected one row, got %d", n)
	}

	grants, err := svc.RolePermissions(ctx, "vendor")
	if err != nil || len(grants) != 1 {
		t.Fatalf("RolePermissions: %v %+v", err, grants)
	}
}

func TestRevokeRemovesDuplicatesAndIgnoresAbsent(t *testing.T) {
	// no unique index, as in stores populated before it existed
	f, svc := rbacFixture(t, &fixture{idp: identity.NewMemory(), docs: docstore.NewMemory()})
	ctx := context.Background()
	if err := svc.Revoke(ctx, "vendor", PermStaffRead); err != nil {
		t.Fatalf("Revoke absent: %v", err)
	}
	for _, id := range []string{"dup-1", "dup-2"} {
		if _, err := f.docs.Create(ctx, "role_permissions", id, map[string]any{"roleId": "vendor", "permissionId": PermTicketsPay, "note": id}); err != nil {
			t.Fatalf("seed duplicate: %v", err)
		}
	}
	if err := svc.Revoke(ctx, "vendor", PermTicketsPay); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if n := f.countGrants(t, "vendor", PermTicketsPay); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
}

func TestSystemRoleIsImmutable(t *testing.T) {
	f, svc := newRBACFixture(t)
	ctx := context.Background()
	if _, err := svc.Grant(ctx, "owner", PermStaffRead); !errors.Is(err, ErrSystemRole) {
		t.Fatalf("Grant: expected ErrSystemRole, got %v", err)
	}
	if err := svc.Revoke(ctx, "owner", PermStaffRead); !errors.Is(err, ErrSystemRole) {
		t.Fatalf("Revoke: expected ErrSystemRole, got %v", err)
	}
	if _, err := svc.Toggle(ctx, "owner", PermStaffRead); !errors.Is(err, ErrSystemRole) {
		t.Fatalf("Toggle: expected ErrSystemRole, got %v", err)
	}
	if n := f.countGrants(t, "owner", PermStaffRead); n != 0 {
		t.Fatalf("system role was modified: %d rows", n)
	}
}

func TestMutationValidation(t *testing.T) {
	_, svc := newRBACFixture(t)
	ctx := context.Background()
	if _, err := svc.Toggle(ctx, "ghost", PermStaffRead); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown role: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Toggle(ctx, "vendor", "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown permission: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Toggle(ctx, " ", PermStaffRead); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank role: expected ErrInvalidInput, got %v", err)
	}
}

func TestListRolesAndPermissionsOrdering(t *testing.T) {
	_, svc := newRBACFixture(t)
	ctx := context.Background()
	roles, err := svc.ListRoles(ctx, false)
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	if len(roles) != 2 || roles[0].Name != "Owner" || roles[1].Name != "Vendedor" || !roles[0].IsSystem {
		t.Fatalf("unexpected roles %+v", roles)
	}
	perms, err := svc.ListPermissions(ctx)
	if err != nil {
		t.Fatalf("ListPermissions: %v", err)
	}
	if len(perms) != 2 || perms[0].Group != "KENO" || perms[1].Group != "STAFF" {
		t.Fatalf("unexpected permissions %+v", perms)
	}
}

func TestRoleCache(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewRoleCache(time.Minute)
	cache.now = func() time.Time { return now }
	loads := 0
	load := func(context.Context) ([]Role, error) {
		loads++
		return []Role{{ID: "r1", Name: "Role"}}, nil
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cache.Get(ctx, false, load); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if loads != 1 {
		t.Fatalf("expected one load, got %d", loads)
	}
	if _, err := cache.Get(ctx, true, load); err != nil || loads != 2 {
		t.Fatalf("forced refresh: loads=%d err=%v", loads, err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.Get(ctx, false, load); err != nil || loads != 3 {
		t.Fatalf("expired entry: loads=%d err=%v", loads, err)
	}
	cache.Invalidate()
	if _, err := cache.Get(ctx, false, load); err != nil || loads != 4 {
		t.Fatalf("invalidated: loads=%d err=%v", loads, err)
	}

	failing := func(context.Context) ([]Role, error) { return nil, errors.New("down") }
	cache.Invalidate()
	if _, err := cache.Get(ctx, false, failing); err == nil {
		t.Fatal("expected load error")
	}
}

func TestListRolesUsesCache(t *testing.T) {
	f := newFixture()
	f.addRole(t, "r1", "Alpha", false)
	svc, err := NewRBACService(f.docs, WithRoleCache(NewRoleCache(0)))
	if err != nil {
		t.Fatalf("NewRBACService: %v", err)
	}
	ctx := context.Background()
	if roles, _ := svc.ListRoles(ctx, false); len(roles) != 1 {
		t.Fatalf("expected one role, got %d", len(roles))
	}
	f.addRole(t, "r2", "Beta", false)
	if roles, _ := svc.ListRoles(ctx, false); len(roles) != 1 {
		t.Fatalf("expected cached list, got %d roles", len(roles))
	}
	if roles, _ := svc.ListRoles(ctx, true); len(roles) != 2 {
		t.Fatalf("expected refreshed list, got %d roles", len(roles))
	}
}

func TestGrantID(t *testing.T) {
	if got := GrantID("manager", PermStaffRead); got != "manager_STAFF_READ" {
		t.Fatalf("unexpected id %q", got)
	}
	if got := GrantID("a-very-long-role-identifier", PermStaffAssignRoles); got != "" {
		t.Fatalf("expected generated id for long pairs, got %q", got)
	}
}
