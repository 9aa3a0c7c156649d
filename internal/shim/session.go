package shim

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NewWrapperDir creates a fresh per-session wrapper directory under the
// system temp dir, named veto-<sessionID>, matching spec.md's
// `$tmp/veto-XXXX` layout.
func NewWrapperDir(sessionID string) string {
	return filepath.Join(os.TempDir(), "veto-"+sessionID)
}

// Teardown removes a session's wrapper directory. Safe to call on a
// directory that was never created or already removed.
func Teardown(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("shim: teardown %s: %w", dir, err)
	}
	return nil
}

// PrependPath returns env with PATH's first entry set to dir, the
// convention every shim script and the daemon's child processes rely on to
// find the shadowed binaries before the real ones.
func PrependPath(env []string, dir string) []string {
	out := make([]string, 0, len(env)+1)
	replaced := false
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			out = append(out, "PATH="+dir+string(os.PathListSeparator)+strings.TrimPrefix(e, "PATH="))
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, "PATH="+dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
	return out
}
