package submit

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"bidbot-engine/internal/console"
	"bidbot-engine/internal/humanize"
)

// Confirmer approves a filled form right before it is sent.
type Confirmer interface {
	Confirm(ctx context.Context, req Request) (bool, error)
}

// AutoConfirm approves everything after a short pause.
type AutoConfirm struct {
	Pacer *humanize.Pacer
	Delay time.Duration
}

func (a AutoConfirm) Confirm(ctx context.Context, _ Request) (bool, error) {
	if a.Pacer == nil || a.Delay <= 0 {
		return true, ctx.Err()
	}
	return true, a.Pacer.Pause(ctx, humanize.Range{Min: a.Delay, Max: a.Delay})
}

// PromptConfirm asks an operator on a terminal. Enter or "y" sends; "n" skips.
// Closed input skips.
type PromptConfirm struct {
	Lines *console.Lines
	Out   io.Writer
}

func (p PromptConfirm) Confirm(ctx context.Context, req Request) (bool, error) {
	fmt.Fprintf(p.Out, "\nSend bid for %q at $%d, %d days? [Enter/y = send, n = skip] ", req.Title, req.Price, req.DeliveryDays)

	line, err := p.Lines.Next(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "", "y", "yes", "s", "si":
		return true, nil
	}
	return false, nil
}
