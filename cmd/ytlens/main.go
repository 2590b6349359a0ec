// ytlens is the terminal client: paste a YouTube link, get a structured
// analysis, then chat about the video. It talks to a running go_transcript
// server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/anatolykoptev/go_transcript/internal/apiclient"
	"github.com/anatolykoptev/go_transcript/internal/session"
	"github.com/anatolykoptev/go_transcript/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ytlens:", err)
		os.Exit(1)
	}
}

func run() error {
	// The alternate screen owns stdout; logs go to a file or nowhere.
	if path := env.Str("YTLENS_LOG", ""); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer f.Close()
		slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})))
	} else {
		slog.SetDefault(slog.New(slog.DiscardHandler))
	}

	client := apiclient.New(env.Str("YTLENS_SERVER", "http://localhost:3000"),
		apiclient.WithToken(env.Str("YTLENS_TOKEN", "")),
	)

	var opts []session.Option
	opts = append(opts, session.WithCallTimeout(env.Duration("YTLENS_TIMEOUT", 3*time.Minute)))

	if email := env.Str("YTLENS_EMAIL", ""); email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		sess, err := client.SignIn(ctx, email, env.Str("YTLENS_PASSWORD", ""))
		cancel()
		if err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
		slog.Info("signed in", slog.String("user_id", sess.UserID))
		opts = append(opts, session.WithSaver(client))
	} else if env.Str("YTLENS_TOKEN", "") != "" {
		opts = append(opts, session.WithSaver(client))
	}

	p := tea.NewProgram(tui.New(session.New(client, opts...)), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
