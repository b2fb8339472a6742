package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/session"
)

// Run starts the interactive program and blocks until the user quits or
// ctx is cancelled. Session changes made outside the program, such as a
// rejected token, are forwarded to it.
func Run(ctx context.Context, store *session.Store, client *api.Client, opts ...ModelOption) error {
	model := NewModel(ctx, store, client, opts...)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

	unsubscribe := store.Subscribe(func(snap session.Snapshot) {
		p.Send(SessionMsg{Snapshot: snap})
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
