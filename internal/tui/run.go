package tui

import (
	"context"
	"errors"

	"ostplayer/internal/player"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the player until the user quits or ctx is canceled
func Run(ctx context.Context, machine *player.Machine) error {
	m := newModel(ctx, machine)
	m.updates = machine.Subscribe()
	defer func() {
		// the listener may already have been replaced after a drop
		machine.Unsubscribe(m.updates)
	}()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	final, err := p.Run()
	if fm, ok := final.(model); ok {
		m.updates = fm.updates
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
