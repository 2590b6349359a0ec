package tui

// Key binding constants used in handleKey.
const (
	KeyQuit      = "ctrl+c"
	KeyEsc       = "esc"
	KeyEnter     = "enter"
	KeyBackspace = "backspace"
	KeySpace     = " "
	KeyReset     = "ctrl+r"
	KeySave      = "ctrl+s"
	KeyClear     = "ctrl+u"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyPgUp      = "pgup"
	KeyPgDown    = "pgdown"
)
