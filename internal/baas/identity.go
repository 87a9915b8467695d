package baas

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kenoadmin.org/internal/identity"
)

// Identity implements identity.Provider over the accounts, users and teams APIs.
type Identity struct {
	c *Client
}

var _ identity.Provider = (*Identity)(nil)

func NewIdentity(c *Client) *Identity { return &Identity{c: c} }

type accountBody struct {
	ID                string `json:"$id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	EmailVerification bool   `json:"emailVerification"`
	Status            bool   `json:"status"`
}

func (a accountBody) identity() identity.Identity {
	return identity.Identity{
		ID:            a.ID,
		Email:         a.Email,
		Name:          a.Name,
		Phone:         a.Phone,
		EmailVerified: a.EmailVerification,
		Enabled:       a.Status,
	}
}

type membershipList struct {
	Total       int `json:"total"`
	Memberships []struct {
		ID       string   `json:"$id"`
		TeamID   string   `json:"teamId"`
		TeamName string   `json:"teamName"`
		UserID   string   `json:"userId"`
		Roles    []string `json:"roles"`
	} `json:"memberships"`
}

type sessionBody struct {
	ID     string `json:"$id"`
	UserID string `json:"userId"`
	Secret string `json:"secret"`
	Expire string `json:"expire"`
}

func (p *Identity) Authenticate(ctx context.Context, creds identity.Credentials) (identity.Identity, error) {
	req, err := p.c.caller(ctx, creds)
	if err != nil {
		return identity.Identity{}, err
	}
	var body accountBody
	if err := p.c.send(req, http.MethodGet, "/account", &body); err != nil {
		return identity.Identity{}, err
	}
	return body.identity(), nil
}

func (p *Identity) Memberships(ctx context.Context, creds identity.Credentials, teamID, userID string) ([]identity.Membership, error) {
	req, err := p.c.caller(ctx, creds)
	if err != nil {
		return nil, err
	}
	queries := url.Values{}
	queries.Add("queries[]", equalQuery("userId", userID))
	queries.Add("queries[]", limitQuery(1))
	req.SetQueryParamsFromValues(queries)

	var body membershipList
	if err := p.c.send(req, http.MethodGet, "/teams/"+url.PathEscape(teamID)+"/memberships", &body); err != nil {
		return nil, err
	}
	out := make([]identity.Membership, 0, len(body.Memberships))
	for _, m := range body.Memberships {
		out = append(out, identity.Membership{
			ID:       m.ID,
			TeamID:   m.TeamID,
			TeamName: m.TeamName,
			UserID:   m.UserID,
			Roles:    m.Roles,
		})
	}
	return out, nil
}

func (p *Identity) CreateIdentity(ctx context.Context, in identity.NewIdentity) (identity.Identity, error) {
	payload := map[string]any{
		"userId":   in.ID,
		"email":    in.Email,
		"password": in.Password,
		"name":     in.Name,
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		payload["phone"] = phone
	}
	var body accountBody
	if err := p.c.send(p.c.admin(ctx).SetBody(payload), http.MethodPost, "/users", &body); err != nil {
		return identity.Identity{}, err
	}
	return body.identity(), nil
}

func (p *Identity) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	req := p.c.admin(ctx).SetBody(map[string]any{"status": enabled})
	return p.c.send(req, http.MethodPatch, "/users/"+url.PathEscape(userID)+"/status", nil)
}

func (p *Identity) Login(ctx context.Context, email, password string) (identity.Session, error) {
	req := p.c.admin(ctx).SetBody(map[string]string{"email": email, "password": password})
	var body sessionBody
	if err := p.c.send(req, http.MethodPost, "/account/sessions/email", &body); err != nil {
		return identity.Session{}, err
	}
	s := identity.Session{ID: body.ID, UserID: body.UserID, Secret: body.Secret}
	if t, err := time.Parse(time.RFC3339Nano, body.Expire); err == nil {
		s.ExpiresAt = t
	}
	return s, nil
}

func (p *Identity) Logout(ctx context.Context, creds identity.Credentials) error {
	req, err := p.c.caller(ctx, creds)
	if err != nil {
		return err
	}
	return p.c.send(req, http.MethodDelete, "/account/sessions/current", nil)
}

func (p *Identity) CreateRecovery(ctx context.Context, email, redirectURL string) error {
	req := p.c.admin(ctx).SetBody(map[string]string{"email": email, "url": redirectURL})
	return p.c.send(req, http.MethodPost, "/account/recovery", nil)
}

func (p *Identity) CompleteRecovery(ctx context.Context, userID, secret, password string) error {
	req := p.c.admin(ctx).SetBody(map[string]string{"userId": userID, "secret": secret, "password": password})
	return p.c.send(req, http.MethodPut, "/account/recovery", nil)
}

func (p *Identity) UpdateName(ctx context.Context, creds identity.Credentials, name string) (identity.Identity, error) {
	req, err := p.c.caller(ctx, creds)
	if err != nil {
		return identity.Identity{}, err
	}
	var body accountBody
	if err := p.c.send(req.SetBody(map[string]string{"name": name}), http.MethodPatch, "/account/name", &body); err != nil {
		return identity.Identity{}, err
	}
	return body.identity(), nil
}

func (p *Identity) UpdatePassword(ctx context.Context, creds identity.Credentials, password, oldPassword string) (identity.Identity, error) {
	req, err := p.c.caller(ctx, creds)
	if err != nil {
		return identity.Identity{}, err
	}
	payload := map[string]string{"password": password, "oldPassword": oldPassword}
	var body accountBody
	if err := p.c.send(req.SetBody(payload), http.MethodPatch, "/account/password", &body); err != nil {
		return identity.Identity{}, err
	}
	return body.identity(), nil
}
