// Package baas talks to the hosted backend-as-a-service REST API: accounts,
// teams, users and document databases. Every call is a single attempt.
package baas

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"kenoadmin.org/internal/docstore"
	"kenoadmin.org/internal/identity"
)

const (
	headerProject = "X-Appwrite-Project"
	headerKey     = "X-Appwrite-Key"
	headerJWT     = "X-Appwrite-JWT"
	headerSession = "X-Appwrite-Session"
)

// Config addresses one project of the hosted service.
type Config struct {
	Endpoint  string
	ProjectID string
	APIKey    string
	Timeout   time.Duration
}

// Client is a thin resty wrapper shared by Identity and Documents.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Client)

// WithLogger sets the logger used for failed calls.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the clock used by the local JWT expiry check.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if cfg.Endpoint == "" || strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("baas: endpoint and project id are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(cfg.Timeout).
		SetHeader(headerProject, cfg.ProjectID).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return c, nil
}

// admin returns a request authorised with the server API key.
func (c *Client) admin(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetHeader(headerKey, c.cfg.APIKey)
}

// caller returns a request acting as the end user behind creds.
func (c *Client) caller(ctx context.Context, creds identity.Credentials) (*resty.Request, error) {
	req := c.http.R().SetContext(ctx)
	switch {
	case strings.TrimSpace(creds.JWT) != "":
		if err := checkJWT(creds.JWT, c.now()); err != nil {
			return nil, err
		}
		return req.SetHeader(headerJWT, creds.JWT), nil
	case strings.TrimSpace(creds.Session) != "":
		return req.SetHeader(headerSession, creds.Session), nil
	}
	return nil, identity.ErrUnauthenticated
}

// send executes req and converts non-2xx responses into *Error.
func (c *Client) send(req *resty.Request, method, path string, result any) error {
	apiErr := &Error{}
	if result != nil {
		req.SetResult(result)
	}
	req.SetError(apiErr)
	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn("baas call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("baas: %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode()
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		c.logger.Debug("baas call rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", apiErr.Code),
			zap.String("type", apiErr.Type),
		)
		return apiErr
	}
	return nil
}

// Error is the provider's JSON error body.
type Error struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("baas: %s (%d %s)", e.Message, e.Code, e.Type)
	}
	return fmt.Sprintf("baas: %s (%d)", e.Message, e.Code)
}

// Unwrap maps the status code onto the identity and docstore sentinels.
func (e *Error) Unwrap() []error {
	switch e.Code {
	case http.StatusUnauthorized:
		return []error{identity.ErrUnauthenticated}
	case http.StatusNotFound:
		return []error{identity.ErrNotFound, docstore.ErrNotFound}
	case http.StatusConflict:
		return []error{identity.ErrConflict, docstore.ErrConflict}
	case http.StatusBadRequest:
		return []error{identity.ErrInvalidInput, docstore.ErrInvalidInput}
	}
	return nil
}
