package shim

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vetohq/veto/internal/daemon"
	"github.com/vetohq/veto/internal/decision"
	"github.com/vetohq/veto/internal/policy"
)

func startTestDaemon(t *testing.T, set *policy.Set) string {
	t.Helper()
	d := daemon.New(decision.NewEngine(set))
	if err := d.Listen(""); err != nil {
		t.Fatal(err)
	}
	go d.Serve()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		d.Shutdown(ctx)
	})
	return d.Addr().String()
}

func TestAskDaemonDeniesOnUnreachableAddr(t *testing.T) {
	if AskDaemon("127.0.0.1:1", policy.ActionDelete, "/tmp/x", "") {
		t.Fatal("expected fail-closed deny for unreachable daemon")
	}
}

func TestAskDaemonRoundTrip(t *testing.T) {
	set := &policy.Set{
		Policies: []policy.Policy{
			{Action: policy.ActionDelete, Include: []string{"/etc/**"}, Description: "protect /etc"},
		},
	}
	addr := startTestDaemon(t, set)

	if AskDaemon(addr, policy.ActionDelete, "/etc/passwd", "") {
		t.Fatal("expected deny for protected path")
	}
	if !AskDaemon(addr, policy.ActionDelete, "/tmp/scratch", "") {
		t.Fatal("expected allow for unprotected path")
	}
}

func TestBuildWrapperDirWritesExecutableScripts(t *testing.T) {
	dir := t.TempDir()
	if err := Build(dir, "/usr/local/bin/veto", "127.0.0.1:9999", []policy.PolicyActionKind{policy.ActionDelete}); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"rm", "unlink", "rmdir", "git"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("expected %s script: %v", name, err)
		}
		if info.Mode()&0o100 == 0 {
			t.Fatalf("expected %s to be executable", name)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "mv")); err == nil {
		t.Fatal("did not request modify actions, mv should not be generated")
	}
}

func TestWalkTargetsSingleFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "x.txt")
	os.WriteFile(f, []byte("hi"), 0o644)

	targets := WalkTargets(f)
	if len(targets) != 1 || targets[0] != f {
		t.Fatalf("expected single file target, got %v", targets)
	}
}

func TestRunHelperFailsClosedWithoutDaemonAddr(t *testing.T) {
	os.Unsetenv(DaemonAddrEnv)
	if code := RunHelper([]string{"delete", "rm", "--", "/tmp/x"}); code != 1 {
		t.Fatalf("expected exit 1 with no daemon addr, got %d", code)
	}
}

func TestRunHelperAsksConfiguredDaemon(t *testing.T) {
	set := &policy.Set{}
	addr := startTestDaemon(t, set)
	os.Setenv(DaemonAddrEnv, addr)
	defer os.Unsetenv(DaemonAddrEnv)

	if code := RunHelper([]string{"delete", "rm", "--", "/tmp/scratch"}); code != 0 {
		t.Fatalf("expected exit 0 for unrestricted target, got %d", code)
	}
}
