// Package shim implements the kernel's shim layer (C11): per-session
// wrapper directories prepended to PATH, containing thin scripts that gate
// destructive commands by asking the daemon one question per target before
// exec'ing the real binary.
package shim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/vetohq/veto/internal/daemon"
	"github.com/vetohq/veto/internal/policy"
)

// DaemonAddrEnv is the environment variable the kernel exports to child
// processes so shims can reach the session's daemon without a name
// service, per spec.md's daemon-port propagation.
const DaemonAddrEnv = "VETO_DAEMON_ADDR"

// dialTimeout bounds the TCP connect itself; the daemon enforces its own
// per-request budget once connected.
const dialTimeout = 500 * time.Millisecond

// MaxWalkDepth and MaxWalkFiles cap the helper's directory expansion when a
// target argument is a directory, per spec.md's shim walk caps.
const (
	MaxWalkDepth = 50
	MaxWalkFiles = 10000
)

// AskDaemon asks the daemon at addr whether action against target (and,
// for command-shaped questions, the full command line) is allowed. It
// fails closed: any dial, write, read, or decode error is treated as deny,
// since a destructive command whose gate can't be reached must not run
// unsupervised.
func AskDaemon(addr string, action policy.PolicyActionKind, target, command string) bool {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return false
	}
	defer conn.Close()

	req := daemon.Request{Action: string(action), Target: target, Command: command}
	out, err := json.Marshal(req)
	if err != nil {
		return false
	}
	out = append(out, '\n')
	if _, err := conn.Write(out); err != nil {
		return false
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return false
	}

	var resp daemon.Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return false
	}
	if !resp.Allowed && resp.Reason != "" {
		fmt.Fprintf(os.Stderr, "veto: blocked — %s\n", resp.Reason)
		if resp.Suggest != "" {
			fmt.Fprintf(os.Stderr, "veto: suggestion — %s\n", resp.Suggest)
		}
	}
	return resp.Allowed
}

// WalkTargets expands a target argument into the set of paths the helper
// should ask about individually: the path itself, or every regular file
// beneath it if it's a directory, bounded by MaxWalkDepth/MaxWalkFiles so a
// deep or enormous tree can't stall the per-request budget.
func WalkTargets(target string) []string {
	info, err := os.Lstat(target)
	if err != nil || !info.IsDir() {
		return []string{target}
	}

	var out []string
	base := filepath.Clean(target)

	walkErr := filepath.Walk(base, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if len(out) >= MaxWalkFiles {
			return filepath.SkipDir
		}
		if fi.IsDir() && pathDepth(base, path) > MaxWalkDepth {
			return filepath.SkipDir
		}
		if !fi.IsDir() {
			out = append(out, path)
		}
		return nil
	})
	if walkErr != nil || len(out) == 0 {
		return []string{target}
	}
	return out
}

// EvaluateAll asks the daemon about every target expanded from args,
// returning false (deny) on the first rejection — one question per target,
// as spec.md's helper contract requires.
func EvaluateAll(addr string, action policy.PolicyActionKind, command string, args []string) bool {
	for _, arg := range args {
		if looksLikeFlag(arg) {
			continue
		}
		for _, target := range WalkTargets(arg) {
			if !AskDaemon(addr, action, target, command) {
				return false
			}
		}
	}
	return true
}

func looksLikeFlag(s string) bool {
	return len(s) > 0 && s[0] == '-'
}

// pathDepth counts the path separators between base and path.
func pathDepth(base, path string) int {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == "." {
		return 0
	}
	depth := 1
	for _, r := range rel {
		if r == filepath.Separator {
			depth++
		}
	}
	return depth
}
