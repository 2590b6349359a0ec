// Package session is the client-side workflow: an immutable State value and
// a reducer that drives fetch, automatic analysis, chat and save. Side
// effects run as bubbletea commands so the same reducer backs the terminal
// client and tests.
package session

import "github.com/anatolykoptev/go_transcript/internal/transcript"

// Phase is the workflow step of a session.
type Phase int

const (
	Idle Phase = iota
	Fetching
	FetchFailed
	Fetched
	Analyzing
	AnalyzeFailed
	Analyzed
)

var phaseNames = [...]string{"idle", "fetching", "fetch_failed", "fetched", "analyzing", "analyze_failed", "analyzed"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Loading reports whether the progress indicator is governed by this phase.
func (p Phase) Loading() bool {
	return p == Fetching || p == Fetched || p == Analyzing
}

// Role of a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of the append-only chat history.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// User-facing messages.
const (
	Greeting             = "Ask me anything about this video!"
	ChatApology          = "Sorry, I encountered an error while processing your question. Please try again."
	InvalidRefMessage    = "Invalid YouTube URL"
	NotFoundMessage      = "No transcript available for this video. Try a different video or check if captions are enabled."
	FetchFailedMessage   = "Failed to fetch transcript"
	AnalyzeFailedMessage = "Failed to analyze transcript"
	SaveFailedMessage    = "Failed to save analysis"
)

// State is the whole session. Reduce never mutates a State it receives;
// slices are copied before they grow.
type State struct {
	Phase    Phase
	Ref      string
	VideoID  string
	Segments []transcript.Segment
	Analysis string
	Err      string

	// Progress is cosmetic, in [0, 100].
	Progress float64

	Chat        []ChatMessage
	ChatPending bool

	Saving  bool
	SavedID string
	SaveErr string

	gen     uint64
	ticking bool
}

// Transcript returns the fetched transcript, if any.
func (s State) Transcript() transcript.Transcript {
	return transcript.Transcript{VideoID: s.VideoID, Segments: s.Segments}
}

// CanChat reports whether a question would be accepted now.
func (s State) CanChat() bool {
	return s.Phase == Analyzed && !s.ChatPending
}

// CanSave reports whether a save would be accepted now. An analysis is
// saved at most once per session.
func (s State) CanSave() bool {
	return s.Phase == Analyzed && !s.Saving && s.SavedID == ""
}

// Generation identifies the current submission; results carrying an older
// generation are dropped.
func (s State) Generation() uint64 { return s.gen }

func appendChat(history []ChatMessage, msgs ...ChatMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(history)+len(msgs))
	out = append(out, history...)
	return append(out, msgs...)
}
