// Package identity describes the external identity provider the admin API
// authenticates against and provisions staff accounts in.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrUnauthenticated = errors.New("identity: unauthenticated")
	ErrNotFound        = errors.New("identity: not found")
	ErrConflict        = errors.New("identity: already exists")
	ErrInvalidInput    = errors.New("identity: invalid input")
)

// Identity is an account in the external provider.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Phone         string `json:"phone,omitempty"`
	EmailVerified bool   `json:"emailVerification"`
	Enabled       bool   `json:"status"`
}

// Credentials carry either a short-lived provider JWT or a session secret.
type Credentials struct {
	JWT     string
	Session string
}

// Empty reports whether no credential was supplied.
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.JWT) == "" && strings.TrimSpace(c.Session) == ""
}

// Membership links an identity to a team with a list of role identifiers.
type Membership struct {
	ID       string   `json:"id"`
	TeamID   string   `json:"teamId"`
	TeamName string   `json:"teamName"`
	UserID   string   `json:"userId"`
	Roles    []string `json:"roles"`
}

// Session is the result of an email/password login.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Secret    string    `json:"-"`
	ExpiresAt time.Time `json:"expire"`
}

// NewIdentity describes an account to be provisioned.
type NewIdentity struct {
	ID       string
	Email    string
	Phone    string
	Password string
	Name     string
}

// Provider is the contract of the identity service.
type Provider interface {
	Authenticate(ctx context.Context, creds Credentials) (Identity, error)
	Memberships(ctx context.Context, creds Credentials, teamID, userID string) ([]Membership, error)
	CreateIdentity(ctx context.Context, in NewIdentity) (Identity, error)
	SetEnabled(ctx context.Context, userID string, enabled bool) error
	Login(ctx context.Context, email, password string) (Session, error)
	Logout(ctx context.Context, creds Credentials) error
	CreateRecovery(ctx context.Context, email, redirectURL string) error
	CompleteRecovery(ctx context.Context, userID, secret, password string) error
	UpdateName(ctx context.Context, creds Credentials, name string) (Identity, error)
	UpdatePassword(ctx context.Context, creds Credentials, password, oldPassword string) (Identity, error)
}
