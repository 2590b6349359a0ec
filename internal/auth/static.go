package auth

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// Static authenticates against a fixed email:password list. Tokens are
// random and live until sign-out or restart.
type Static struct {
	passwords map[string]string

	mu     sync.RWMutex
	tokens map[string]Identity
}

// NewStatic parses "email:password" entries.
func NewStatic(entries []string) (*Static, error) {
	s := &Static{passwords: make(map[string]string), tokens: make(map[string]Identity)}
	for _, e := range entries {
		email, password, ok := strings.Cut(strings.TrimSpace(e), ":")
		if !ok || email == "" || password == "" {
			return nil, fmt.Errorf("auth: static entry %q is not email:password", e)
		}
		s.passwords[strings.ToLower(email)] = password
	}
	return s, nil
}

func (s *Static) SignIn(_ context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	want, ok := s.passwords[email]
	if !ok || want != password {
		return Session{}, ErrInvalidCredentials
	}
	id := Identity{UserID: staticUserID(email), Email: email}
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = id
	s.mu.Unlock()
	return Session{Token: token, Identity: id}, nil
}

func (s *Static) Verify(_ context.Context, token string) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	if !ok {
		return Identity{}, ErrUnauthorized
	}
	return id, nil
}

func (s *Static) SignOut(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	return nil
}

// staticUserID derives a stable owner ID so saved analyses survive restarts.
func staticUserID(email string) string {
	sum := blake3.Sum256([]byte("static:" + email))
	return hex.EncodeToString(sum[:16])
}

// Anonymous accepts every request as a single local user.
type Anonymous struct{}

var localIdentity = Identity{UserID: "local", Email: "local@localhost"}

func (Anonymous) SignIn(context.Context, string, string) (Session, error) {
	return Session{Token: "local", Identity: localIdentity}, nil
}

func (Anonymous) Verify(context.Context, string) (Identity, error) { return localIdentity, nil }

func (Anonymous) SignOut(context.Context, string) error { return nil }
