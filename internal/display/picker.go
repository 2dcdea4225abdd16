package display

import (
	"context"
	"errors"
	"fmt"

	"github.com/hammamikhairi/vicvoix/internal/domain"
	"github.com/hammamikhairi/vicvoix/internal/export"
)

// Compile-time interface check.
var _ domain.DestinationPicker = (*Picker)(nil)

// errNoUI is returned when the form is not running.
var errNoUI = errors.New("form is not running")

// Picker asks for a save path in the form's prompt line. Relative names
// are placed under dir.
type Picker struct {
	ui  *UI
	dir string
}

// NewPicker creates a picker bound to the form.
func NewPicker(ui *UI, dir string) *Picker {
	return &Picker{ui: ui, dir: dir}
}

// Choose opens the save prompt with suggestedName and blocks until the
// user answers or ctx is done. Dismissing the prompt yields ErrCancelled.
func (p *Picker) Choose(ctx context.Context, suggestedName string) (domain.Destination, error) {
	reply := make(chan pickReply, 1)
	if !p.ui.send(pickRequestMsg{suggested: suggestedName, reply: reply}) {
		return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, errNoUI)
	}

	select {
	case r := <-reply:
		if r.cancelled {
			return nil, fmt.Errorf("%w: save dismissed", domain.ErrCancelled)
		}
		return export.NewFileSink(export.ResolvePath(p.dir, r.name)), nil
	case <-ctx.Done():
		p.ui.send(pickAbortMsg{})
		return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, ctx.Err())
	}
}
