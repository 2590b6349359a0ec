package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF4D4D")
	ColorGreen   = lipgloss.Color("#3DDC84")
	ColorYellow  = lipgloss.Color("#FFD24D")
	ColorCyan    = lipgloss.Color("#4DD8FF")
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorMagenta = lipgloss.Color("#E066FF")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorRed)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	PhaseStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	ProgressFullStyle = lipgloss.NewStyle().
				Foreground(ColorMagenta)

	ProgressEmptyStyle = lipgloss.NewStyle().
				Foreground(ColorDimGray)

	HeadingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	UserStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	AssistantStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	PromptStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	CursorStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Reverse(true)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)
)
