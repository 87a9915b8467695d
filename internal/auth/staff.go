package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kenoadmin.org/internal/docstore"
	"kenoadmin.org/internal/identity"
	"kenoadmin.org/internal/ids"
)

// StaffService provisions staff accounts and maintains their records.
type StaffService struct {
	provider    identity.Provider
	docs        docstore.Store
	cols        Collections
	databaseID  string
	newID       func() string
	newPassword func() (string, error)
}

type StaffOption func(*StaffService) error

func WithStaffCollections(c Collections) StaffOption {
	return func(s *StaffService) error {
		s.cols = c
		return nil
	}
}

// WithIdentityIDs overrides identity id generation.
func WithIdentityIDs(fn func() string) StaffOption {
	return func(s *StaffService) error {
		if fn == nil {
			return errors.New("id generator is required")
		}
		s.newID = fn
		return nil
	}
}

func NewStaffService(provider identity.Provider, docs docstore.Store, databaseID string, opts ...StaffOption) (*StaffService, error) {
	if provider == nil || docs == nil {
		return nil, errors.New("identity provider and document store are required")
	}
	s := &StaffService{
		provider:    provider,
		docs:        docs,
		cols:        DefaultCollections(),
		databaseID:  strings.TrimSpace(databaseID),
		newID:       ids.NewIdentityID,
		newPassword: identity.TemporaryPassword,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

type CreateStaffInput struct {
	Email        string
	FullName     string
	Phone        string
	Role         string
	CollectionID string
	DatabaseID   string
}

type StaffCreated struct {
	User     identity.Identity
	Document docstore.Document
}

// Create provisions an identity with a temporary password and its staff
// record keyed by the identity id. Resubmitting creates a second identity
// unless the provider rejects the email. A failed record write leaves the
// identity in place.
func (s *StaffService) Create(ctx context.Context, in CreateStaffInput) (StaffCreated, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Role = strings.TrimSpace(in.Role)
	if in.Email == "" || in.FullName == "" || in.Role == "" || strings.TrimSpace(in.CollectionID) == "" || strings.TrimSpace(in.DatabaseID) == "" {
		return StaffCreated{}, fmt.Errorf("%w: Missing required fields", ErrInvalidInput)
	}
	if !strings.Contains(in.Email, "@") {
		return StaffCreated{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if err := s.checkTarget(in.DatabaseID, in.CollectionID); err != nil {
		return StaffCreated{}, err
	}

	password, err := s.newPassword()
	if err != nil {
		return StaffCreated{}, err
	}
	user, err := s.provider.CreateIdentity(ctx, identity.NewIdentity{
		ID:       s.newID(),
		Email:    in.Email,
		Phone:    in.Phone,
		Password: password,
		Name:     in.FullName,
	})
	if err != nil {
		return StaffCreated{}, mapIdentityError(err)
	}

	doc, err := s.docs.Create(ctx, s.cols.Staff, user.ID, map[string]any{
		"fullName": in.FullName,
		"email":    in.Email,
		"phone":    in.Phone,
		"role":     in.Role,
		"userId":   user.ID,
		"status":   StaffActive,
	})
	if err != nil {
		return StaffCreated{}, mapStoreError(err, "staff "+user.ID)
	}
	return StaffCreated{User: user, Document: doc}, nil
}

// UpdateStaffInput patches a staff record. Nil fields are left untouched.
type UpdateStaffInput struct {
	UserID       string
	DocumentID   string
	DatabaseID   string
	CollectionID string
	Status       *string
	FullName     *string
	Phone        *string
	Role         *string
}

// Update maps a status change onto the provider's enabled flag, then patches
// the staff record with the provided fields.
func (s *StaffService) Update(ctx context.Context, in UpdateStaffInput) (docstore.Document, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.DocumentID = strings.TrimSpace(in.DocumentID)
	if in.UserID == "" || in.DocumentID == "" || strings.TrimSpace(in.DatabaseID) == "" || strings.TrimSpace(in.CollectionID) == "" {
		return docstore.Document{}, fmt.Errorf("%w: Missing required identification fields (userId, documentId, etc.)", ErrInvalidInput)
	}
	if err := s.checkTarget(in.DatabaseID, in.CollectionID); err != nil {
		return docstore.Document{}, err
	}

	patch := map[string]any{}
	if in.FullName != nil && strings.TrimSpace(*in.FullName) != "" {
		patch["fullName"] = strings.TrimSpace(*in.FullName)
	}
	if in.Phone != nil {
		patch["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Role != nil && strings.TrimSpace(*in.Role) != "" {
		patch["role"] = strings.TrimSpace(*in.Role)
	}

	var enable *bool
	if in.Status != nil && strings.TrimSpace(*in.Status) != "" {
		raw := strings.TrimSpace(*in.Status)
		normalized, ok := NormalizeStatus(raw)
		if !ok {
			return docstore.Document{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, raw)
		}
		enabled := normalized == StaffActive
		enable = &enabled
		patch["status"] = raw
	}

	if enable != nil {
		if err := s.provider.SetEnabled(ctx, in.UserID, *enable); err != nil {
			return docstore.Document{}, mapIdentityError(err)
		}
	}
	doc, err := s.docs.Update(ctx, s.cols.Staff, in.DocumentID, patch)
	if err != nil {
		return docstore.Document{}, mapStoreError(err, "staff "+in.DocumentID)
	}
	return doc, nil
}

// List returns one page of staff, optionally filtered by a search term over
// name and email.
func (s *StaffService) List(ctx context.Context, page, limit int, search string) ([]Staff, int, error) {
	q := docstore.PageQuery(page, limit).OrderAsc("fullName")
	if search = strings.TrimSpace(search); search != "" {
		q = q.WithSearch(search, "fullName", "email")
	}
	list, err := s.docs.List(ctx, s.cols.Staff, q)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Staff, 0, len(list.Documents))
	for _, d := range list.Documents {
		out = append(out, staffFromDoc(d))
	}
	return out, list.Total, nil
}

func (s *StaffService) Get(ctx context.Context, id string) (Staff, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Staff{}, fmt.Errorf("%w: staff id is required", ErrInvalidInput)
	}
	d, err := s.docs.Get(ctx, s.cols.Staff, id)
	if err != nil {
		return Staff{}, mapStoreError(err, "staff "+id)
	}
	return staffFromDoc(d), nil
}

// checkTarget keeps callers from addressing collections other than staff.
func (s *StaffService) checkTarget(databaseID, collectionID string) error {
	if strings.TrimSpace(collectionID) != s.cols.Staff {
		return fmt.Errorf("%w: collectionId must be %q", ErrInvalidInput, s.cols.Staff)
	}
	if s.databaseID != "" && strings.TrimSpace(databaseID) != s.databaseID {
		return fmt.Errorf("%w: databaseId must be %q", ErrInvalidInput, s.databaseID)
	}
	return nil
}

func staffFromDoc(d docstore.Document) Staff {
	return Staff{
		ID:        d.ID,
		UserID:    d.String("userId"),
		FullName:  d.String("fullName"),
		Email:     d.String("email"),
		Phone:     d.String("phone"),
		Role:      d.String("role"),
		Status:    d.String("status"),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func mapIdentityError(err error) error {
	switch {
	case errors.Is(err, identity.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, identity.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, identity.ErrInvalidInput):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return err
}
