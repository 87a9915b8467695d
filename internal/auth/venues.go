package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kenoadmin.org/internal/docstore"
)

// VenueService manages points of sale.
type VenueService struct {
	docs docstore.Store
	cols Collections
}

func NewVenueService(docs docstore.Store, cols Collections) (*VenueService, error) {
	if docs == nil {
		return nil, errors.New("document store is required")
	}
	return &VenueService{docs: docs, cols: cols}, nil
}

type VenueInput struct {
	Name          *string
	Code          *string
	IsActive      *bool
	VendorIDs     []string
	CommissionPct *float64
	Address       *string
	Phone         *string
	Notes         *string
}

func (s *VenueService) List(ctx context.Context, page, limit int) ([]Venue, int, error) {
	list, err := s.docs.List(ctx, s.cols.Venues, docstore.PageQuery(page, limit).OrderAsc("name"))
	if err != nil {
		return nil, 0, err
	}
	out := make([]Venue, 0, len(list.Documents))
	for _, d := range list.Documents {
		out = append(out, venueFromDoc(d))
	}
	return out, list.Total, nil
}

func (s *VenueService) Get(ctx context.Context, id string) (Venue, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Venue{}, fmt.Errorf("%w: venue id is required", ErrInvalidInput)
	}
	d, err := s.docs.Get(ctx, s.cols.Venues, id)
	if err != nil {
		return Venue{}, mapStoreError(err, "venue "+id)
	}
	return venueFromDoc(d), nil
}

// Create requires name and code; code must be unique.
func (s *VenueService) Create(ctx context.Context, in VenueInput) (Venue, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" || in.Code == nil || strings.TrimSpace(*in.Code) == "" {
		return Venue{}, fmt.Errorf("%w: name and code are required", ErrInvalidInput)
	}
	data, err := venuePatch(in)
	if err != nil {
		return Venue{}, err
	}
	if _, ok := data["isActive"]; !ok {
		data["isActive"] = true
	}
	if _, ok := data["vendorIds"]; !ok {
		data["vendorIds"] = []string{}
	}
	if _, ok := data["commissionPct"]; !ok {
		data["commissionPct"] = 0.0
	}
	if err := s.checkCodeFree(ctx, data["code"].(string), ""); err != nil {
		return Venue{}, err
	}
	d, err := s.docs.Create(ctx, s.cols.Venues, "", data)
	if err != nil {
		return Venue{}, mapStoreError(err, "venue code "+data["code"].(string))
	}
	return venueFromDoc(d), nil
}

// Update applies the provided fields with the same validation as Create.
func (s *VenueService) Update(ctx context.Context, id string, in VenueInput) (Venue, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Venue{}, fmt.Errorf("%w: venue id is required", ErrInvalidInput)
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return Venue{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}
	if in.Code != nil && strings.TrimSpace(*in.Code) == "" {
		return Venue{}, fmt.Errorf("%w: code cannot be empty", ErrInvalidInput)
	}
	data, err := venuePatch(in)
	if err != nil {
		return Venue{}, err
	}
	if code, ok := data["code"].(string); ok {
		if err := s.checkCodeFree(ctx, code, id); err != nil {
			return Venue{}, err
		}
	}
	d, err := s.docs.Update(ctx, s.cols.Venues, id, data)
	if err != nil {
		return Venue{}, mapStoreError(err, "venue "+id)
	}
	return venueFromDoc(d), nil
}

// checkCodeFree rejects a code already used by another venue. Stores with a
// unique index enforce the same rule on write.
func (s *VenueService) checkCodeFree(ctx context.Context, code, selfID string) error {
	list, err := s.docs.List(ctx, s.cols.Venues, docstore.NewQuery(docstore.Equal("code", code)).WithLimit(2))
	if err != nil {
		return err
	}
	for _, d := range list.Documents {
		if d.ID != selfID {
			return fmt.Errorf("%w: venue code %s already exists", ErrConflict, code)
		}
	}
	return nil
}

func venuePatch(in VenueInput) (map[string]any, error) {
	data := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len(name) > 100 {
			return nil, fmt.Errorf("%w: name must be at most 100 characters", ErrInvalidInput)
		}
		data["name"] = name
	}
	if in.Code != nil {
		code := strings.TrimSpace(*in.Code)
		if len(code) < 2 || len(code) > 20 {
			return nil, fmt.Errorf("%w: code must be 2 to 20 characters", ErrInvalidInput)
		}
		data["code"] = code
	}
	if in.IsActive != nil {
		data["isActive"] = *in.IsActive
	}
	if in.VendorIDs != nil {
		vendors := make([]string, 0, len(in.VendorIDs))
		seen := make(map[string]struct{}, len(in.VendorIDs))
		for _, v := range in.VendorIDs {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			vendors = append(vendors, v)
		}
		data["vendorIds"] = vendors
	}
	if in.CommissionPct != nil {
		pct := *in.CommissionPct
		if pct < 0 || pct > 100 {
			return nil, fmt.Errorf("%w: commissionPct must be between 0 and 100", ErrInvalidInput)
		}
		data["commissionPct"] = pct
	}
	if in.Address != nil {
		data["address"] = strings.TrimSpace(*in.Address)
	}
	if in.Phone != nil {
		data["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Notes != nil {
		data["notes"] = strings.TrimSpace(*in.Notes)
	}
	return data, nil
}

func venueFromDoc(d docstore.Document) Venue {
	vendors := d.Strings("vendorIds")
	if vendors == nil {
		vendors = []string{}
	}
	return Venue{
		ID:            d.ID,
		Name:          d.String("name"),
		Code:          d.String("code"),
		IsActive:      d.Bool("isActive"),
		VendorIDs:     vendors,
		CommissionPct: d.Float("commissionPct"),
		Address:       d.String("address"),
		Phone:         d.String("phone"),
		Notes:         d.String("notes"),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}
