// Package apiclient calls the JSON API. Client satisfies the session
// Backend and Saver ports so the terminal client runs the same workflow
// against a remote server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/anatolykoptev/go_transcript/internal/auth"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/store"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

// Client talks to one API server.
type Client struct {
	base  string
	http  *http.Client
	token string
	retry engine.RetryConfig
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (3 minute timeout).
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithToken sets the bearer token used for saved-analysis calls.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// New creates a Client for the server at base, e.g. http://localhost:3000.
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:  strings.TrimRight(base, "/"),
		http:  &http.Client{Timeout: 3 * time.Minute},
		retry: engine.DefaultRetryConfig,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SignIn exchanges credentials for a token and keeps it for later calls.
func (c *Client) SignIn(ctx context.Context, email, password string) (auth.Session, error) {
	var sess auth.Session
	err := c.call(ctx, http.MethodPost, "/auth/signin", map[string]string{"email": email, "password": password}, &sess)
	if err != nil {
		return auth.Session{}, err
	}
	c.token = sess.Token
	return sess, nil
}

func (c *Client) FetchTranscript(ctx context.Context, ref string) (transcript.Transcript, error) {
	var out transcript.Transcript
	if err := c.call(ctx, http.MethodPost, "/transcript", map[string]string{"url": ref}, &out); err != nil {
		return transcript.Transcript{}, err
	}
	return out, nil
}

func (c *Client) Analyze(ctx context.Context, segs []transcript.Segment) (string, error) {
	var out struct {
		Analysis string `json:"analysis"`
	}
	if err := c.call(ctx, http.MethodPost, "/analyze", map[string]any{"transcript": segs}, &out); err != nil {
		return "", err
	}
	return out.Analysis, nil
}

func (c *Client) Ask(ctx context.Context, question, transcriptText, videoID string) (string, error) {
	var out struct {
		Response string `json:"response"`
	}
	body := map[string]string{"question": question, "transcript": transcriptText, "videoId": videoID}
	if err := c.call(ctx, http.MethodPost, "/chat", body, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// Save stores an analysis and returns its ID.
func (c *Client) Save(ctx context.Context, videoID, analysis string, segs []transcript.Segment) (string, error) {
	var out store.SavedAnalysis
	body := map[string]any{"videoId": videoID, "analysis": analysis, "transcript": segs}
	if err := c.call(ctx, http.MethodPost, "/analyses", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// List returns the caller's saved analyses, newest first.
func (c *Client) List(ctx context.Context) ([]store.SavedAnalysis, error) {
	var out []store.SavedAnalysis
	if err := c.call(ctx, http.MethodGet, "/analyses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// call sends a JSON request and decodes a 2xx body into out. Error
// responses become typed engine errors. A POST is retried only when the
// connection was never made: it runs an LLM call or creates a record. GETs
// also retry transient network errors and 429/503.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
	}

	resp, err := engine.RetryDo(ctx, c.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if method != http.MethodGet && !dialFailed(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if method == http.MethodGet && throttled(resp.StatusCode) {
			resp.Body.Close()
			return nil, &engine.HTTPStatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
	if err != nil {
		var se *engine.HTTPStatusError
		if errors.As(err, &se) {
			return statusError(se.StatusCode, nil)
		}
		return engine.Upstream("server unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return engine.Upstream("read response", err)
	}
	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return engine.Upstream("malformed server response", err)
	}
	return nil
}

// dialFailed reports whether the request never reached the server.
func dialFailed(err error) bool {
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}

func throttled(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// statusError maps an API error response onto the shared error taxonomy.
func statusError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &e)
	msg := e.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound && strings.HasPrefix(msg, "No transcript"):
		return fmt.Errorf("%w: %s", engine.ErrNotFound, msg)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", store.ErrNotFound, msg)
	case status == http.StatusBadRequest && msg == "Invalid YouTube URL":
		return fmt.Errorf("%w: %s", engine.ErrInvalidReference, msg)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", auth.ErrUnauthorized, msg)
	case status < 500:
		return fmt.Errorf("%w: %s", engine.ErrMissingInput, msg)
	}
	return &engine.UpstreamError{Message: msg, Err: &engine.HTTPStatusError{StatusCode: status}}
}
