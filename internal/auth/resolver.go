package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kenoadmin.org/internal/docstore"
	"kenoadmin.org/internal/identity"
	"kenoadmin.org/internal/obs"
)

// Resolver turns caller credentials into an authorization payload by walking
// identity, staff record, team membership, role and permission grants.
type Resolver struct {
	provider identity.Provider
	docs     docstore.Store
	cols     Collections
	teamID   string
	teamName string
	parallel bool
}

type ResolverOption func(*Resolver) error

func WithResolverCollections(c Collections) ResolverOption {
	return func(r *Resolver) error {
		r.cols = c
		return nil
	}
}

// WithTeamName sets the team name reported in the payload.
func WithTeamName(name string) ResolverOption {
	return func(r *Resolver) error {
		if name = strings.TrimSpace(name); name != "" {
			r.teamName = name
		}
		return nil
	}
}

// WithParallelLookups runs the staff and membership lookups concurrently.
// Failures are still reported in step order.
func WithParallelLookups(enabled bool) ResolverOption {
	return func(r *Resolver) error {
		r.parallel = enabled
		return nil
	}
}

func NewResolver(provider identity.Provider, docs docstore.Store, staffTeamID string, opts ...ResolverOption) (*Resolver, error) {
	if provider == nil {
		return nil, errors.New("identity provider is required")
	}
	if docs == nil {
		return nil, errors.New("document store is required")
	}
	staffTeamID = strings.TrimSpace(staffTeamID)
	if staffTeamID == "" {
		return nil, errors.New("staff team id is required")
	}
	r := &Resolver{
		provider: provider,
		docs:     docs,
		cols:     DefaultCollections(),
		teamID:   staffTeamID,
		teamName: "Staff",
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

type staffLookup struct {
	doc docstore.Document
	err error
}

type membershipLookup struct {
	memberships []identity.Membership
	err         error
}

// Resolve runs the lookup chain, short-circuiting on the first failure. Every
// failure is an *Error; there are no retries.
func (r *Resolver) Resolve(ctx context.Context, creds identity.Credentials) (Payload, error) {
	if creds.Empty() {
		return Payload{}, newError(KindUnauthorized, "Unauthorized", identity.ErrUnauthenticated)
	}
	user, err := r.provider.Authenticate(ctx, creds)
	if err != nil {
		return Payload{}, newError(KindUnauthorized, "Unauthorized", err)
	}
	if !user.EmailVerified {
		return Payload{}, newError(KindEmailNotVerified, "Email not verified", nil)
	}

	var (
		staff staffLookup
		team  membershipLookup
	)
	if r.parallel {
		var g errgroup.Group
		g.Go(func() error {
			staff = r.lookupStaff(ctx, user.ID)
			return nil
		})
		g.Go(func() error {
			team = r.lookupMemberships(ctx, creds, user.ID)
			return nil
		})
		_ = g.Wait()
	} else {
		staff = r.lookupStaff(ctx, user.ID)
	}

	if staff.err != nil {
		return Payload{}, newError(KindStaffNotFound, "Staff profile not found", staff.err)
	}
	status := staff.doc.String("status")
	if !IsActiveStatus(status) {
		e := newError(KindAccountBlocked, "Account is "+status, nil)
		e.Status = status
		return Payload{}, e
	}

	if !r.parallel {
		team = r.lookupMemberships(ctx, creds, user.ID)
	}
	if team.err != nil || len(team.memberships) == 0 {
		return Payload{}, newError(KindAccountNotMember, "Account is not a member of any team", team.err)
	}
	var membership *identity.Membership
	for i := range team.memberships {
		if team.memberships[i].TeamID == r.teamID {
			membership = &team.memberships[i]
			break
		}
	}
	if membership == nil {
		return Payload{}, newError(KindAccountNotMember, "Account is not a member of "+r.teamName+" team", nil)
	}

	if len(membership.Roles) == 0 || strings.TrimSpace(membership.Roles[0]) == "" {
		return Payload{}, newError(KindAccountNoRole, "Account has no role", nil)
	}
	roleID := membership.Roles[0]

	roleDoc, err := r.docs.Get(ctx, r.cols.Roles, roleID)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			obs.Logger().Warn("role lookup failed", zap.String("role_id", roleID), zap.Error(err))
		}
		return Payload{}, newError(KindRoleNotFound, "Role not found", err)
	}

	perms, err := r.grantedPermissions(ctx, roleID)
	if err != nil {
		return Payload{}, newError(KindInternal, err.Error(), err)
	}

	payload := Payload{
		User:        UserSummary{ID: user.ID, Email: user.Email, Name: user.Name},
		Team:        TeamSummary{ID: r.teamID, Name: r.teamName},
		Role:        RoleSummary{ID: roleDoc.ID, Name: roleDoc.String("name")},
		Permissions: make([]string, 0, len(perms)),
		Groups:      []string{},
	}
	seenGroups := make(map[string]struct{})
	for _, p := range perms {
		payload.Permissions = append(payload.Permissions, p.Key)
		if p.Group == "" {
			continue
		}
		if _, ok := seenGroups[p.Group]; ok {
			continue
		}
		seenGroups[p.Group] = struct{}{}
		payload.Groups = append(payload.Groups, p.Group)
	}
	return payload, nil
}

func (r *Resolver) lookupStaff(ctx context.Context, userID string) staffLookup {
	list, err := r.docs.List(ctx, r.cols.Staff, docstore.NewQuery(docstore.Equal("userId", userID)).WithLimit(1))
	if err != nil {
		obs.Logger().Warn("staff profile lookup failed", zap.String("user_id", userID), zap.Error(err))
		return staffLookup{err: err}
	}
	if len(list.Documents) == 0 {
		return staffLookup{err: docstore.ErrNotFound}
	}
	return staffLookup{doc: list.Documents[0]}
}

func (r *Resolver) lookupMemberships(ctx context.Context, creds identity.Credentials, userID string) membershipLookup {
	ms, err := r.provider.Memberships(ctx, creds, r.teamID, userID)
	if err != nil {
		obs.Logger().Warn("team lookup failed", zap.String("user_id", userID), zap.Error(err))
	}
	return membershipLookup{memberships: ms, err: err}
}

// grantedPermissions reads at most docstore.MaxLimit grants and permissions;
// anything beyond the cap is not returned.
func (r *Resolver) grantedPermissions(ctx context.Context, roleID string) ([]Permission, error) {
	grants, err := r.docs.List(ctx, r.cols.RolePermissions,
		docstore.NewQuery(docstore.Equal("roleId", roleID)).WithLimit(docstore.MaxLimit))
	if err != nil {
		return nil, err
	}
	ids := make([]any, 0, len(grants.Documents))
	for _, g := range grants.Documents {
		if pid := g.String("permissionId"); pid != "" {
			ids = append(ids, pid)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	list, err := r.docs.List(ctx, r.cols.Permissions,
		docstore.NewQuery(docstore.Equal(docstore.IDAttribute, ids...)).WithLimit(docstore.MaxLimit))
	if err != nil {
		return nil, err
	}
	out := make([]Permission, 0, len(list.Documents))
	for _, d := range list.Documents {
		out = append(out, permissionFromDoc(d))
	}
	return out, nil
}

func permissionFromDoc(d docstore.Document) Permission {
	key := d.String("key")
	if key == "" {
		key = d.ID
	}
	return Permission{
		ID:          d.ID,
		Key:         key,
		Group:       d.String("group"),
		Description: d.String("description"),
	}
}
