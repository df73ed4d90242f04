package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/voyagen/tvplayer/internal/notify"
	"github.com/voyagen/tvplayer/internal/presenter"
)

// Run shows the terminal UI until the user quits or ctx is done.
func Run(ctx context.Context, svc Service, rows *presenter.Presenter, notes *notify.Center) error {
	var prog *tea.Program
	ready := make(chan struct{})
	// Send blocks while Update runs, so signals raised from inside Update are delivered from a goroutine.
	send := func(msg tea.Msg) {
		go func() {
			<-ready
			prog.Send(msg)
		}()
	}

	m := New(ctx, svc, rows, send)
	prog = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	close(ready)
	notes.Subscribe(func(msg notify.Message) { send(notificationMsg{text: msg.Text}) })

	defer rows.SetView(nil)
	if _, err := prog.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
