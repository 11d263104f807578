package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"

	"github.com/rescp17/transferkit/internal/style"
	"github.com/rescp17/transferkit/internal/util"
	"github.com/rescp17/transferkit/pkg/transfer"
	"github.com/rescp17/transferkit/pkg/ui"
)

// follow shows the transfers until they all end, in the TUI or as plain progress bars
func follow(ctx context.Context, m *transfer.Manager, plain bool, out io.Writer) error {
	defer removeUnfinished(m)
	if plain {
		return followPlain(ctx, m, out)
	}
	p := tea.NewProgram(ui.New(m, ui.ExitWhenDone()), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run the interface: %w", err)
	}
	return nil
}

// removeUnfinished cancels what is still running so partial files do not linger
func removeUnfinished(m *transfer.Manager) {
	for _, t := range m.Filter(transfer.FilterDownloading) {
		t.Remove(false)
	}
}

func newBar(t transfer.Transfer, out io.Writer) *progressbar.ProgressBar {
	total := t.TotalSize()
	if total <= 0 {
		total = -1
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(util.PadRight(t.DisplayName(), 24)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
	)
}

func followPlain(ctx context.Context, m *transfer.Manager, out io.Writer) error {
	bars := make(map[string]*progressbar.ProgressBar)
	ended := make(map[string]bool)
	failed := 0
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		running := 0
		for _, t := range m.Filter(transfer.FilterAll) {
			if ended[t.ID()] {
				continue
			}
			bar, ok := bars[t.ID()]
			if !ok {
				bar = newBar(t, out)
				bars[t.ID()] = bar
			}
			if size := t.TotalSize(); size > 0 && bar.GetMax64() != size {
				bar.ChangeMax64(size)
			}
			_ = bar.Set64(t.BytesTransferred())

			switch t.State() {
			case transfer.StateComplete:
				_ = bar.Finish()
				ended[t.ID()] = true
				fmt.Fprintf(out, "%s %s\n", style.StateStyle(t.State()).Render("saved"), t.SavePath())
			case transfer.StateError, transfer.StateCanceled:
				_ = bar.Exit()
				ended[t.ID()] = true
				failed++
				fmt.Fprintf(out, "\n%s: %s: %v\n", t.DisplayName(), style.StateStyle(t.State()).Render(t.State().String()), t.Err())
			default:
				running++
			}
		}
		if running == 0 {
			if failed > 0 {
				return fmt.Errorf("%d of %d transfers failed", failed, len(bars))
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
