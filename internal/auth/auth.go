// Package auth resolves bearer tokens to user identities. Providers:
// Supabase (GoTrue), a static credential list, and an anonymous local mode.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Identity is the opaque owner of saved analyses.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Session is returned by a successful sign-in.
type Session struct {
	Token string `json:"token"`
	Identity
}

// Provider signs users in and verifies their tokens.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	Verify(ctx context.Context, token string) (Identity, error)
	SignOut(ctx context.Context, token string) error
}

// Config selects a provider.
type Config struct {
	Provider     string // supabase | static | none
	SupabaseURL  string
	SupabaseKey  string
	StaticTokens []string // email:password pairs
}

// New builds the configured provider.
func New(c Config) (Provider, error) {
	switch c.Provider {
	case "", "none":
		return Anonymous{}, nil
	case "static":
		return NewStatic(c.StaticTokens)
	case "supabase":
		return NewSupabase(c.SupabaseURL, c.SupabaseKey)
	}
	return nil, fmt.Errorf("unknown AUTH_PROVIDER %q", c.Provider)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type ctxKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}
