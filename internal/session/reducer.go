package session

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

const (
	defaultTickInterval = 500 * time.Millisecond
	defaultClearDelay   = 500 * time.Millisecond
	defaultCallTimeout  = 2 * time.Minute

	progressCap  = 90
	progressStep = 15
)

// Backend runs the three remote operations. *transcript.Pipeline satisfies it
// in-process; apiclient.Client satisfies it over HTTP.
type Backend interface {
	FetchTranscript(ctx context.Context, ref string) (transcript.Transcript, error)
	Analyze(ctx context.Context, segs []transcript.Segment) (string, error)
	Ask(ctx context.Context, question, transcriptText, videoID string) (string, error)
}

// Saver persists an analysis and returns its ID.
type Saver interface {
	Save(ctx context.Context, videoID, analysis string, segs []transcript.Segment) (string, error)
}

// Reducer computes state transitions. It holds only dependencies; all session
// data lives in State.
type Reducer struct {
	backend      Backend
	saver        Saver
	rand         func() float64
	tickInterval time.Duration
	clearDelay   time.Duration
	callTimeout  time.Duration
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithSaver enables Save.
func WithSaver(s Saver) Option { return func(r *Reducer) { r.saver = s } }

// WithRand replaces the progress increment source; f must return [0, 1).
func WithRand(f func() float64) Option { return func(r *Reducer) { r.rand = f } }

// WithTiming overrides the progress tick interval and the delay before a
// finished indicator resets to zero.
func WithTiming(tick, clear time.Duration) Option {
	return func(r *Reducer) {
		r.tickInterval = tick
		r.clearDelay = clear
	}
}

// WithCallTimeout bounds every backend call.
func WithCallTimeout(d time.Duration) Option { return func(r *Reducer) { r.callTimeout = d } }

// New creates a Reducer over backend.
func New(backend Backend, opts ...Option) *Reducer {
	r := &Reducer{
		backend:      backend,
		rand:         rand.Float64,
		tickInterval: defaultTickInterval,
		clearDelay:   defaultClearDelay,
		callTimeout:  defaultCallTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// CanPersist reports whether Save has anywhere to go.
func (r *Reducer) CanPersist() bool { return r.saver != nil }

// User intents.
type (
	// Submit starts a new session for a video reference.
	Submit struct{ Ref string }
	// Reset returns to Idle and drops any in-flight results.
	Reset struct{}
	// Ask sends one chat question.
	Ask struct{ Question string }
	// Save persists the current analysis.
	Save struct{}
)

// Results and timers. Each carries the generation that produced it.
type (
	fetchDone struct {
		gen uint64
		tr  transcript.Transcript
		err error
	}
	analyzeStart struct{ gen uint64 }
	analyzeDone  struct {
		gen  uint64
		text string
		err  error
	}
	answerDone struct {
		gen  uint64
		text string
		err  error
	}
	saveDone struct {
		gen uint64
		id  string
		err error
	}
	progressTick    struct{ gen uint64 }
	progressCleared struct{ gen uint64 }
)

// Reduce returns the state that follows msg, and the command to run next.
// Unknown and stale messages return s unchanged with a nil command.
func (r *Reducer) Reduce(s State, msg tea.Msg) (State, tea.Cmd) {
	switch m := msg.(type) {
	case Submit:
		return r.submit(s, m.Ref)

	case Reset:
		return State{gen: s.gen + 1}, nil

	case fetchDone:
		if m.gen != s.gen || s.Phase != Fetching {
			return s, nil
		}
		if m.err != nil {
			s.Phase = FetchFailed
			s.Err = fetchErrorMessage(m.err)
			return r.finishLoading(s)
		}
		s.Phase = Fetched
		s.VideoID = m.tr.VideoID
		s.Segments = m.tr.Segments
		gen := s.gen
		return s, func() tea.Msg { return analyzeStart{gen: gen} }

	case analyzeStart:
		if m.gen != s.gen || s.Phase != Fetched {
			return s, nil
		}
		s.Phase = Analyzing
		return s, r.analyze(s.gen, s.Segments)

	case analyzeDone:
		if m.gen != s.gen || s.Phase != Analyzing {
			return s, nil
		}
		if m.err != nil {
			s.Phase = AnalyzeFailed
			s.Err = analyzeErrorMessage(m.err)
			return r.finishLoading(s)
		}
		s.Phase = Analyzed
		s.Analysis = m.text
		s.Chat = []ChatMessage{{Role: RoleAssistant, Content: Greeting}}
		return r.finishLoading(s)

	case progressTick:
		if m.gen != s.gen || !s.ticking {
			return s, nil
		}
		s.Progress = min(s.Progress+r.rand()*progressStep, progressCap)
		return s, r.tick(s.gen)

	case progressCleared:
		if m.gen != s.gen || s.ticking {
			return s, nil
		}
		s.Progress = 0
		return s, nil

	case Ask:
		q := strings.TrimSpace(m.Question)
		if q == "" || !s.CanChat() {
			return s, nil
		}
		s.Chat = appendChat(s.Chat, ChatMessage{Role: RoleUser, Content: q})
		s.ChatPending = true
		return s, r.ask(s.gen, q, transcript.JoinText(s.Segments), s.VideoID)

	case answerDone:
		if m.gen != s.gen || !s.ChatPending {
			return s, nil
		}
		reply := m.text
		if m.err != nil {
			slog.Warn("session: chat turn failed", slog.String("video_id", s.VideoID), slog.Any("error", m.err))
			reply = ChatApology
		}
		s.Chat = appendChat(s.Chat, ChatMessage{Role: RoleAssistant, Content: reply})
		s.ChatPending = false
		return s, nil

	case Save:
		if r.saver == nil || !s.CanSave() {
			return s, nil
		}
		s.Saving = true
		s.SaveErr = ""
		return s, r.save(s.gen, s.VideoID, s.Analysis, s.Segments)

	case saveDone:
		if m.gen != s.gen || !s.Saving {
			return s, nil
		}
		s.Saving = false
		if m.err != nil {
			slog.Warn("session: save failed", slog.String("video_id", s.VideoID), slog.Any("error", m.err))
			s.SaveErr = SaveFailedMessage
			return s, nil
		}
		s.SavedID = m.id
		return s, nil
	}
	return s, nil
}

func (r *Reducer) submit(s State, ref string) (State, tea.Cmd) {
	next := State{Ref: strings.TrimSpace(ref), gen: s.gen + 1}
	if _, err := sources.ParseVideoID(next.Ref); err != nil {
		next.Phase = FetchFailed
		next.Err = InvalidRefMessage
		return next, nil
	}
	next.Phase = Fetching
	next.ticking = true
	return next, tea.Batch(r.fetch(next.gen, next.Ref), r.tick(next.gen))
}

// finishLoading stops the ticker, fills the bar and schedules its reset.
func (r *Reducer) finishLoading(s State) (State, tea.Cmd) {
	s.ticking = false
	s.Progress = 100
	gen := s.gen
	return s, tea.Tick(r.clearDelay, func(time.Time) tea.Msg { return progressCleared{gen: gen} })
}

func (r *Reducer) tick(gen uint64) tea.Cmd {
	return tea.Tick(r.tickInterval, func(time.Time) tea.Msg { return progressTick{gen: gen} })
}

func (r *Reducer) fetch(gen uint64, ref string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), r.callTimeout)
		defer cancel()
		tr, err := r.backend.FetchTranscript(ctx, ref)
		return fetchDone{gen: gen, tr: tr, err: err}
	}
}

func (r *Reducer) analyze(gen uint64, segs []transcript.Segment) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), r.callTimeout)
		defer cancel()
		text, err := r.backend.Analyze(ctx, segs)
		return analyzeDone{gen: gen, text: text, err: err}
	}
}

func (r *Reducer) ask(gen uint64, question, text, videoID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), r.callTimeout)
		defer cancel()
		answer, err := r.backend.Ask(ctx, question, text, videoID)
		return answerDone{gen: gen, text: answer, err: err}
	}
}

func (r *Reducer) save(gen uint64, videoID, analysis string, segs []transcript.Segment) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), r.callTimeout)
		defer cancel()
		id, err := r.saver.Save(ctx, videoID, analysis, segs)
		return saveDone{gen: gen, id: id, err: err}
	}
}

func fetchErrorMessage(err error) string {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return NotFoundMessage
	case errors.Is(err, engine.ErrInvalidReference):
		return InvalidRefMessage
	}
	return engine.UpstreamMessage(err, FetchFailedMessage)
}

func analyzeErrorMessage(err error) string {
	return engine.UpstreamMessage(err, AnalyzeFailedMessage)
}
