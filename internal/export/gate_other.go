//go:build !unix

package export

// DirGate grants every destination on platforms without access(2).
type DirGate struct{}

// Granted always reports true.
func (DirGate) Granted(string) bool { return true }
