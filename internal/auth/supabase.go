package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	supabase "github.com/supabase-community/supabase-go"
)

// Supabase delegates to a Supabase project's GoTrue auth service.
type Supabase struct {
	client *supabase.Client
}

// NewSupabase creates a client for the project at url with its anon key.
func NewSupabase(url, key string) (*Supabase, error) {
	if url == "" || key == "" {
		return nil, errors.New("SUPABASE_URL and SUPABASE_KEY are required")
	}
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize supabase SDK: %w", err)
	}
	return &Supabase{client: client}, nil
}

func (s *Supabase) SignIn(_ context.Context, email, password string) (Session, error) {
	sess, err := s.client.SignInWithEmailPassword(email, password)
	if err != nil {
		if rejected(err) {
			slog.Info("auth: supabase sign-in rejected", slog.String("email", email), slog.Any("error", err))
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("supabase sign-in: %w", err)
	}
	return Session{
		Token:    sess.AccessToken,
		Identity: Identity{UserID: sess.User.ID.String(), Email: sess.User.Email},
	}, nil
}

// gotrueStatusRe finds the status gotrue-go puts in its error strings
// ("response status code 400: {...}").
var gotrueStatusRe = regexp.MustCompile(`status code (\d{3})`)

// rejected reports whether GoTrue answered the sign-in with a client error,
// i.e. refused the credentials. Transport failures, throttling and 5xx are
// not rejections.
func rejected(err error) bool {
	m := gotrueStatusRe.FindStringSubmatch(err.Error())
	if m == nil {
		return false
	}
	code, _ := strconv.Atoi(m[1])
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

func (s *Supabase) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}
	user, err := s.client.Auth.WithToken(token).GetUser()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return Identity{UserID: user.ID.String(), Email: user.Email}, nil
}

func (s *Supabase) SignOut(_ context.Context, token string) error {
	if err := s.client.Auth.WithToken(token).Logout(); err != nil {
		return fmt.Errorf("supabase sign-out: %w", err)
	}
	return nil
}
