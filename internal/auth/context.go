package auth

import (
	"context"

	"kenoadmin.org/internal/identity"
)

type payloadContextKey struct{}
type credentialsContextKey struct{}

// ContextWithPayload attaches the resolved authorization payload to the context.
func ContextWithPayload(ctx context.Context, p Payload) context.Context {
	return context.WithValue(ctx, payloadContextKey{}, &p)
}

// PayloadFromContext extracts the resolved payload from the context.
func PayloadFromContext(ctx context.Context) (Payload, bool) {
	if ctx == nil {
		return Payload{}, false
	}
	v, ok := ctx.Value(payloadContextKey{}).(*Payload)
	if !ok || v == nil {
		return Payload{}, false
	}
	return *v, true
}

// UserIDFromContext returns the caller's identity id when a payload is attached.
func UserIDFromContext(ctx context.Context) (string, bool) {
	p, ok := PayloadFromContext(ctx)
	if !ok || p.User.ID == "" {
		return "", false
	}
	return p.User.ID, true
}

// GateFromContext returns a loaded gate for the attached payload, or a pending one.
func GateFromContext(ctx context.Context) Gate {
	p, ok := PayloadFromContext(ctx)
	if !ok {
		return PendingGate()
	}
	return NewGate(&p)
}

// ContextWithCredentials stores the caller's provider credentials.
func ContextWithCredentials(ctx context.Context, creds identity.Credentials) context.Context {
	if creds.Empty() {
		return ctx
	}
	return context.WithValue(ctx, credentialsContextKey{}, creds)
}

// CredentialsFromContext returns credentials previously attached.
func CredentialsFromContext(ctx context.Context) (identity.Credentials, bool) {
	if ctx == nil {
		return identity.Credentials{}, false
	}
	v, ok := ctx.Value(credentialsContextKey{}).(identity.Credentials)
	return v, ok
}
