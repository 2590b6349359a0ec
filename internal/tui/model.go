// Package tui is the terminal client: a bubbletea model that feeds key
// presses into the session reducer and renders its state.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/anatolykoptev/go_transcript/internal/session"
	"github.com/anatolykoptev/go_transcript/internal/ui"
)

const progressWidth = 30

// Model is the root bubbletea model.
type Model struct {
	reducer *session.Reducer
	state   session.State

	input []rune

	width  int
	height int
	scroll int
}

// New creates a Model in the Idle phase.
func New(r *session.Reducer) Model {
	return Model{reducer: r}
}

// Init has nothing to start; the first command comes from a submitted URL.
func (m Model) Init() tea.Cmd { return nil }

// State returns the current session state.
func (m Model) State() session.State { return m.state }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.scroll = min(m.scroll, m.maxScroll())
		return m, nil
	}
	return m.dispatch(msg)
}

// dispatch runs msg through the reducer.
func (m Model) dispatch(msg tea.Msg) (tea.Model, tea.Cmd) {
	prev := m.state.Phase
	var cmd tea.Cmd
	m.state, cmd = m.reducer.Reduce(m.state, msg)
	if m.state.Phase != prev {
		m.scroll = 0
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyEsc:
		return m, tea.Quit

	case KeyEnter:
		text := strings.TrimSpace(string(m.input))
		if text == "" {
			return m, nil
		}
		if m.chatMode() {
			if !m.state.CanChat() {
				return m, nil
			}
			m.input = nil
			return m.dispatch(session.Ask{Question: text})
		}
		if m.state.Phase.Loading() {
			return m, nil
		}
		m.input = nil
		return m.dispatch(session.Submit{Ref: text})

	case KeyReset:
		m.input = nil
		return m.dispatch(session.Reset{})

	case KeySave:
		return m.dispatch(session.Save{})

	case KeyClear:
		m.input = nil
		return m, nil

	case KeyBackspace:
		if n := len(m.input); n > 0 {
			m.input = m.input[:n-1]
		}
		return m, nil

	case KeySpace:
		m.input = append(m.input, ' ')
		return m, nil

	case KeyUp:
		m.scroll = max(m.scroll-1, 0)
		return m, nil
	case KeyDown:
		m.scroll = min(m.scroll+1, m.maxScroll())
		return m, nil
	case KeyPgUp:
		m.scroll = max(m.scroll-m.contentHeight(), 0)
		return m, nil
	case KeyPgDown:
		m.scroll = min(m.scroll+m.contentHeight(), m.maxScroll())
		return m, nil
	}

	if msg.Type == tea.KeyRunes {
		m.input = append(m.input, msg.Runes...)
	}
	return m, nil
}

// chatMode reports whether the input line sends chat questions instead of URLs.
func (m Model) chatMode() bool {
	return m.state.Phase == session.Analyzed
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderStatus(),
		ui.DividerStyle.Render(strings.Repeat("─", m.width)),
	}

	lines := m.contentLines()
	end := min(m.scroll+m.contentHeight(), len(lines))
	if m.scroll < end {
		sections = append(sections, strings.Join(lines[m.scroll:end], "\n"))
	}

	sections = append(sections,
		ui.DividerStyle.Render(strings.Repeat("─", m.width)),
		m.renderInput(),
		m.renderFooter(),
	)
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("YTLENS")
	if m.state.VideoID != "" {
		title += ui.DimStyle.Render(" / " + m.state.VideoID)
	}
	return title
}

func (m Model) renderStatus() string {
	s := m.state
	var parts []string
	if s.Phase != session.Idle {
		parts = append(parts, ui.PhaseStyle.Render(phaseLabel(s.Phase)))
	}
	if s.Phase.Loading() || s.Progress > 0 {
		parts = append(parts, progressBar(s.Progress, progressWidth))
	}
	if s.Err != "" {
		parts = append(parts, ui.ErrorStyle.Render(s.Err))
	}
	switch {
	case s.Saving:
		parts = append(parts, ui.DimStyle.Render("saving..."))
	case s.SaveErr != "":
		parts = append(parts, ui.ErrorStyle.Render(s.SaveErr))
	case s.SavedID != "":
		parts = append(parts, ui.SuccessStyle.Render("saved "+s.SavedID))
	}
	if len(parts) == 0 {
		return ui.DimStyle.Render("Paste a YouTube link and press enter")
	}
	return strings.Join(parts, "  ")
}

func phaseLabel(p session.Phase) string {
	switch p {
	case session.Fetching:
		return "Fetching transcript..."
	case session.Fetched, session.Analyzing:
		return "Analyzing..."
	case session.FetchFailed, session.AnalyzeFailed:
		return "Failed"
	case session.Analyzed:
		return "Analysis"
	}
	return ""
}

// progressBar draws pct (0-100) as a fixed-width bar with a percentage.
func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	filled = max(0, min(filled, width))
	return ui.ProgressFullStyle.Render(strings.Repeat("█", filled)) +
		ui.ProgressEmptyStyle.Render(strings.Repeat("░", width-filled)) +
		ui.DimStyle.Render(fmt.Sprintf(" %3.0f%%", pct))
}

// contentLines is the scrollable body: analysis then chat once analyzed,
// otherwise a transcript preview.
func (m Model) contentLines() []string {
	s := m.state
	wrap := lipgloss.NewStyle().Width(max(m.width, 20))
	var out []string

	if s.Analysis != "" {
		for _, line := range strings.Split(s.Analysis, "\n") {
			if strings.HasPrefix(line, "#") {
				out = append(out, ui.HeadingStyle.Render(strings.TrimSpace(strings.TrimLeft(line, "#"))))
				continue
			}
			out = append(out, strings.Split(wrap.Render(line), "\n")...)
		}
	} else if len(s.Segments) > 0 {
		out = append(out, ui.DimStyle.Render(fmt.Sprintf("Transcript: %d segments", len(s.Segments))))
		out = append(out, strings.Split(wrap.Render(s.Transcript().Text()), "\n")...)
	}

	if len(s.Chat) > 0 {
		out = append(out, "", ui.HeadingStyle.Render("Chat"))
		for _, c := range s.Chat {
			label := ui.AssistantStyle.Render("assistant: ")
			if c.Role == session.RoleUser {
				label = ui.UserStyle.Render("you: ")
			}
			out = append(out, strings.Split(wrap.Render(label+c.Content), "\n")...)
		}
		if s.ChatPending {
			out = append(out, ui.DimStyle.Render("thinking..."))
		}
	}
	return out
}

// contentHeight is the number of body rows left after header, status,
// dividers, input and footer.
func (m Model) contentHeight() int {
	return max(m.height-6, 3)
}

func (m Model) maxScroll() int {
	return max(len(m.contentLines())-m.contentHeight(), 0)
}

func (m Model) renderInput() string {
	prompt := "url> "
	if m.chatMode() {
		prompt = "ask> "
	}
	return ui.PromptStyle.Render(prompt) + string(m.input) + ui.CursorStyle.Render(" ")
}

func (m Model) renderFooter() string {
	keys := [][2]string{{"enter", "submit"}}
	if m.chatMode() {
		keys[0][1] = "ask"
		if m.reducer.CanPersist() {
			keys = append(keys, [2]string{"ctrl+s", "save"})
		}
	}
	keys = append(keys,
		[2]string{"ctrl+r", "new video"},
		[2]string{"↑/↓", "scroll"},
		[2]string{"esc", "quit"},
	)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = ui.FooterKeyStyle.Render(k[0]) + " " + ui.FooterDescStyle.Render(k[1])
	}
	return strings.Join(parts, "  ")
}
