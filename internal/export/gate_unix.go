//go:build unix

package export

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DirGate grants a destination when its directory is writable by this
// process.
type DirGate struct{}

// Granted checks write access to the destination's directory.
func (DirGate) Granted(destination string) bool {
	return unix.Access(filepath.Dir(destination), unix.W_OK) == nil
}
