// Package httpapi serves the JSON API: the transcript, analyze and chat
// endpoints, saved-analysis CRUD, sign-in, rendering and metrics.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_transcript/internal/auth"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/render"
	"github.com/anatolykoptev/go_transcript/internal/store"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

// maxBodyBytes bounds request bodies; long transcripts run a few MB.
const maxBodyBytes = 16 << 20

// Pipeline runs the three transcript operations.
type Pipeline interface {
	FetchTranscript(ctx context.Context, ref string) (transcript.Transcript, error)
	Analyze(ctx context.Context, segs []transcript.Segment) (string, error)
	Ask(ctx context.Context, question, transcriptText, videoID string) (string, error)
}

// Deps are the collaborators of a Server. Store and Auth may be nil, which
// disables the saved-analysis and sign-in routes.
type Deps struct {
	Pipeline   Pipeline
	Store      store.Gateway
	Auth       auth.Provider
	Titles     func(ctx context.Context, videoID string) string
	RenderMode render.Mode
	RatePerSec float64
	RateBurst  int
}

// Server holds the handlers' dependencies.
type Server struct {
	Deps
	limiter *rate.Limiter
}

// New creates a Server. A zero RatePerSec disables rate limiting.
func New(d Deps) *Server {
	if d.Titles == nil {
		d.Titles = sources.LookupTitle
	}
	s := &Server{Deps: d}
	if d.RatePerSec > 0 {
		burst := d.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(d.RatePerSec), burst)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /transcript", s.handleTranscript)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /render", s.handleRender)

	if s.Auth != nil {
		mux.HandleFunc("POST /auth/signin", s.handleSignIn)
		mux.HandleFunc("POST /auth/signout", s.handleSignOut)
	}
	if s.Store != nil && s.Auth != nil {
		mux.Handle("GET /analyses", s.requireAuth(s.handleListAnalyses))
		mux.Handle("POST /analyses", s.requireAuth(s.handleCreateAnalysis))
		mux.Handle("GET /analyses/{id}", s.requireAuth(s.handleGetAnalysis))
		mux.Handle("PATCH /analyses/{id}", s.requireAuth(s.handleUpdateAnalysis))
		mux.Handle("DELETE /analyses/{id}", s.requireAuth(s.handleDeleteAnalysis))
		mux.Handle("GET /analyses/{id}/export.docx", s.requireAuth(s.handleExportAnalysis))
	}

	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(engine.FormatMetrics()))
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return accessLog(s.rateLimit(mux))
}

// Run serves h on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		// Analysis calls can take a minute on free model tiers.
		WriteTimeout: 3 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api: listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api: shutdown", slog.Any("error", err))
		return err
	}
	slog.Info("api: stopped")
	return nil
}
