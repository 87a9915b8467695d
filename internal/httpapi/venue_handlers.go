package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"kenoadmin.org/internal/auth"
)

type venueRequest struct {
	Name          *string  `json:"name"`
	Code          *string  `json:"code"`
	IsActive      *bool    `json:"isActive"`
	VendorIDs     []string `json:"vendorIds"`
	CommissionPct *float64 `json:"commissionPct"`
	Address       *string  `json:"address"`
	Phone         *string  `json:"phone"`
	Notes         *string  `json:"notes"`
}

func (req venueRequest) input() auth.VenueInput {
	return auth.VenueInput{
		Name:          req.Name,
		Code:          req.Code,
		IsActive:      req.IsActive,
		VendorIDs:     req.VendorIDs,
		CommissionPct: req.CommissionPct,
		Address:       req.Address,
		Phone:         req.Phone,
		Notes:         req.Notes,
	}
}

func (a *API) handleVenuesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listVenues(w, r)
	case http.MethodPost:
		a.createVenue(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleVenueResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/venues/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, auth.PermVenuesRead) {
			return
		}
		v, err := a.venues.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	case http.MethodPatch:
		a.updateVenue(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) listVenues(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermissions(w, r, auth.PermVenuesRead) {
		return
	}
	page, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := a.venues.List(r.Context(), page, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[auth.Venue]{Items: items, Total: total, Page: page, Limit: limit})
}

func (a *API) createVenue(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermissions(w, r, auth.PermVenuesCreate) {
		return
	}
	var req venueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	v, err := a.venues.Create(r.Context(), req.input())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "venue.create", "venue", v.ID, map[string]string{
		"code": v.Code,
		"name": v.Name,
	})
	w.Header().Set("Location", "/api/venues/"+v.ID)
	writeJSON(w, http.StatusCreated, v)
}

func (a *API) updateVenue(w http.ResponseWriter, r *http.Request, id string) {
	if !a.ensurePermissions(w, r, auth.PermVenuesUpdate) {
		return
	}
	var req venueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	v, err := a.venues.Update(r.Context(), id, req.input())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "venue.update", "venue", v.ID, map[string]string{
		"code":      v.Code,
		"is_active": strconv.FormatBool(v.IsActive),
	})
	writeJSON(w, http.StatusOK, v)
}
