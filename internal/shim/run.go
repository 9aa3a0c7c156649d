package shim

import (
	"os"

	"github.com/vetohq/veto/internal/policy"
)

// RunHelper is the entry point the shim scripts exec into: `veto
// __shim-helper <action> <command> -- <args...>`. It exits 0 (allow) or 1
// (deny), and never transforms argv — only the exit code feeds back into
// the calling script's decision to exec the real binary.
func RunHelper(args []string) int {
	addr := os.Getenv(DaemonAddrEnv)
	if addr == "" {
		// No daemon reachable: fail closed, per spec.md's shim failure
		// semantics for destructive operations.
		return 1
	}
	if len(args) < 2 {
		return 1
	}

	action := policy.PolicyActionKind(args[0])
	command := args[1]

	var targets []string
	for _, a := range args[2:] {
		if a == "--" {
			continue
		}
		targets = append(targets, a)
	}

	if EvaluateAll(addr, action, command, targets) {
		return 0
	}
	return 1
}
