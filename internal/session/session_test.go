package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegisterGetUnregister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	s := Session{ID: "sess-1", AgentID: "claude-code", PID: os.Getpid(), DaemonPort: 4455}
	if err := r.Register(s); err != nil {
		t.Fatal(err)
	}

	got, ok, err := r.Get("sess-1")
	if err != nil || !ok {
		t.Fatalf("expected to find session, err=%v ok=%v", err, ok)
	}
	if got.AgentID != "claude-code" {
		t.Fatalf("unexpected agent id %q", got.AgentID)
	}

	if err := r.Unregister("sess-1"); err != nil {
		t.Fatal(err)
	}
	_, ok, err = r.Get("sess-1")
	if err != nil || ok {
		t.Fatalf("expected session to be gone, ok=%v err=%v", ok, err)
	}
}

func TestListPrunesDeadPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Register(Session{ID: "dead", PID: 999999999}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Session{ID: "alive", PID: os.Getpid()}); err != nil {
		t.Fatal(err)
	}

	sessions, err := r.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ID != "alive" {
		t.Fatalf("expected only the live session to remain, got %+v", sessions)
	}
}
