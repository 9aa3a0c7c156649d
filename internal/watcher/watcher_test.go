package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vetohq/veto/internal/snapshot"
)

func TestWatcherRestoresProtectedFile(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "secrets.env")
	if err := os.WriteFile(target, []byte("A=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := snapshot.Open(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Capture(target); err != nil {
		t.Fatal(err)
	}

	w, err := New(store, []string{"**/*.env"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.AddRecursive(root); err != nil {
		t.Fatal(err)
	}
	go w.Run()

	if err := os.WriteFile(target, []byte("A=EVIL\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(target)
		if err == nil && string(data) == "A=1\n" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not restore the protected file in time")
}
