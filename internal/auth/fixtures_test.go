package auth

import (
	"context"
	"errors"
	"testing"

	"kenoadmin.org/internal/docstore"
	"kenoadmin.org/internal/identity"
)

const testTeamID = "staff-team"

type fixture struct {
	idp  *identity.Memory
	docs *docstore.Memory
}

func newFixture() *fixture {
	docs := docstore.NewMemory(
		docstore.WithUnique("staff", "userId"),
		docstore.WithUnique("role_permissions", "roleId", "permissionId"),
		docstore.WithUnique("venues", "code"),
	)
	return &fixture{idp: identity.NewMemory(), docs: docs}
}

func (f *fixture) resolver(t *testing.T, opts ...ResolverOption) *Resolver {
	t.Helper()
	r, err := NewResolver(f.idp, f.docs, testTeamID, opts...)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

// addIdentity registers a verified-or-not identity and returns session credentials.
func (f *fixture) addIdentity(id string, verified bool) identity.Credentials {
	f.idp.Put(identity.Identity{ID: id, Email: id + "@keno.test", Name: "User " + id, EmailVerified: verified, Enabled: true}, "")
	return identity.Credentials{Session: f.idp.IssueSession(id)}
}

func (f *fixture) addStaff(t *testing.T, userID, status string) {
	t.Helper()
	if _, err := f.docs.Create(context.Background(), "staff", userID, map[string]any{
		"userId":   userID,
		"fullName": "Staff " + userID,
		"email":    userID + "@keno.test",
		"status":   status,
	}); err != nil {
		t.Fatalf("create staff: %v", err)
	}
}

func (f *fixture) addMembership(userID string, roles ...string) {
	f.idp.AddMembership(identity.Membership{TeamID: testTeamID, TeamName: "Staff", UserID: userID, Roles: roles})
}

func (f *fixture) addRole(t *testing.T, id, name string, system bool) {
	t.Helper()
	if _, err := f.docs.Create(context.Background(), "roles", id, map[string]any{"name": name, "isSystem": system}); err != nil {
		t.Fatalf("create role: %v", err)
	}
}

func (f *fixture) addPermission(t *testing.T, id, key, group string) {
	t.Helper()
	data := map[string]any{"group": group}
	if key != "" {
		data["key"] = key
	}
	if _, err := f.docs.Create(context.Background(), "permissions", id, data); err != nil {
		t.Fatalf("create permission: %v", err)
	}
}

func (f *fixture) grant(t *testing.T, roleID, permissionID string) {
	t.Helper()
	if _, err := f.docs.Create(context.Background(), "role_permissions", "", map[string]any{"roleId": roleID, "permissionId": permissionID}); err != nil {
		t.Fatalf("create grant: %v", err)
	}
}

func (f *fixture) countGrants(t *testing.T, roleID, permissionID string) int {
	t.Helper()
	list, err := f.docs.List(context.Background(), "role_permissions", docstore.NewQuery(
		docstore.Equal("roleId", roleID), docstore.Equal("permissionId", permissionID)).WithLimit(docstore.MaxLimit))
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	return list.Total
}

// activeUser wires identity, staff record, membership and role r1 for userID.
func (f *fixture) activeUser(t *testing.T, userID string) identity.Credentials {
	t.Helper()
	creds := f.addIdentity(userID, true)
	f.addStaff(t, userID, "active")
	f.addMembership(userID, "r1")
	return creds
}

func expectKind(t *testing.T, err error, want Kind) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got success", want.Code())
	}
	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if ae.Kind != want {
		t.Fatalf("expected %s, got %s (%v)", want.Code(), ae.Kind.Code(), err)
	}
	return ae
}
