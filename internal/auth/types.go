package auth

import (
	"strings"
	"time"
)

// Staff statuses. Comparison is case-insensitive; stored values keep the
// spelling an administrator submitted.
const (
	StaffActive    = "active"
	StaffInactive  = "inactive"
	StaffSuspended = "suspended"
	StaffBanned    = "banned"
)

var staffStatuses = []string{StaffActive, StaffInactive, StaffSuspended, StaffBanned}

// NormalizeStatus lower-cases s and reports whether it is a known staff status.
func NormalizeStatus(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, known := range staffStatuses {
		if s == known {
			return s, true
		}
	}
	return s, false
}

// IsActiveStatus reports whether a stored staff status grants access.
func IsActiveStatus(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), StaffActive)
}

// Payload is the resolved authorization of one caller.
type Payload struct {
	User        UserSummary `json:"user"`
	Team        TeamSummary `json:"team"`
	Role        RoleSummary `json:"role"`
	Permissions []string    `json:"permissions"`
	Groups      []string    `json:"groups"`
}

type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type TeamSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RoleSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Role groups permissions.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsSystem    bool      `json:"isSystem"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Permission is a fine-grained capability.
type Permission struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Group       string `json:"group"`
	Description string `json:"description,omitempty"`
}

// RolePermission links roles to permissions.
type RolePermission struct {
	ID           string    `json:"id"`
	RoleID       string    `json:"roleId"`
	PermissionID string    `json:"permissionId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Staff is the operational record of a provider identity.
type Staff struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Venue is a point of sale.
type Venue struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Code          string    `json:"code"`
	IsActive      bool      `json:"isActive"`
	VendorIDs     []string  `json:"vendorIds"`
	CommissionPct float64   `json:"commissionPct"`
	Address       string    `json:"address,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Collections names the document collections the services operate on.
type Collections struct {
	Staff           string
	Roles           string
	Permissions     string
	RolePermissions string
	Venues          string
}

func DefaultCollections() Collections {
	return Collections{
		Staff:           "staff",
		Roles:           "roles",
		Permissions:     "permissions",
		RolePermissions: "role_permissions",
		Venues:          "venues",
	}
}
