// Package export writes synthesized audio to a destination chosen by the
// user.
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/hammamikhairi/vicvoix/internal/domain"
	"github.com/hammamikhairi/vicvoix/internal/logger"
)

// Compile-time interface check.
var _ domain.Exporter = (*Controller)(nil)

// PermissionGate is the legacy storage-permission check. Hosts that grant
// access per destination implement it; everything else leaves it nil.
type PermissionGate interface {
	Granted(destination string) bool
}

// Aborter is implemented by destinations that can discard a partial write.
type Aborter interface {
	Abort() error
}

// Controller copies an audio buffer into a destination.
type Controller struct {
	gate PermissionGate
	log  *logger.Logger
}

// NewController creates an export controller. gate may be nil.
func NewController(gate PermissionGate, log *logger.Logger) *Controller {
	return &Controller{gate: gate, log: log.With("export")}
}

// Export writes all of audio to dst and closes it. On any failure the
// destination is aborted and nothing is reported as saved.
func (c *Controller) Export(ctx context.Context, dst domain.Destination, audio []byte) (domain.ExportResult, error) {
	name := dst.Name()

	if c.gate != nil && !c.gate.Granted(name) {
		abort(dst)
		return domain.ExportResult{}, fmt.Errorf("%w: cannot write to %s", domain.ErrPermission, name)
	}
	if err := ctx.Err(); err != nil {
		abort(dst)
		return domain.ExportResult{}, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}

	n, err := dst.Write(audio)
	if err == nil && n < len(audio) {
		err = io.ErrShortWrite
	}
	if err != nil {
		abort(dst)
		c.log.Error("write %s failed after %d/%d bytes: %v", name, n, len(audio), err)
		return domain.ExportResult{}, fmt.Errorf("%w: writing %s: %w", domain.ErrIO, name, err)
	}
	if err := dst.Close(); err != nil {
		c.log.Error("close %s failed: %v", name, err)
		return domain.ExportResult{}, fmt.Errorf("%w: closing %s: %w", domain.ErrIO, name, err)
	}

	c.log.Info("saved %d bytes to %s", n, name)
	return domain.ExportResult{Destination: name, Bytes: n}, nil
}

func abort(dst domain.Destination) {
	if a, ok := dst.(Aborter); ok {
		a.Abort()
		return
	}
	dst.Close()
}
