// Package audit implements the kernel's audit log (C14): a best-effort,
// append-only JSONL trail of every decision made, written so it never
// blocks the primary decision path.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/vetohq/veto/internal/redact"
)

// defaultMaxLogBytes is the file size at which the log is rotated (10 MB),
// kept to a single ".1" backup.
const defaultMaxLogBytes = 10 * 1024 * 1024

// Action is the coarse outcome recorded for an audit entry.
type Action string

const (
	ActionBlocked  Action = "blocked"
	ActionAllowed  Action = "allowed"
	ActionAsked    Action = "asked"
	ActionRestored Action = "restored"
)

// Event is one entry in the audit log, per spec.md §4.14.
type Event struct {
	Timestamp string                 `json:"timestamp"`
	Action    Action                 `json:"action"`
	Event     string                 `json:"event"`
	Target    string                 `json:"target,omitempty"`
	Policy    string                 `json:"policy,omitempty"`
	Agent     string                 `json:"agent,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Log is an append-only JSONL audit trail.
type Log struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// Open opens (creating if needed) the JSONL file at path.
func Open(path string) (*Log, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &Log{path: path, file: file}, nil
}

// rotateIfNeeded must be called with l.mu held.
func (l *Log) rotateIfNeeded() error {
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}
	if info.Size() < defaultMaxLogBytes {
		return nil
	}

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close audit log before rotation: %w", err)
	}

	rotated := l.path + ".1"
	_ = os.Remove(rotated)
	if err := os.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("rotate audit log: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open fresh audit log after rotation: %w", err)
	}
	l.file = f
	return nil
}

// Write appends event, redacting its free-text fields first. Logging
// failures are reported to stderr and otherwise swallowed: the audit log
// must never block or fail the decision it's recording.
func (l *Log) Write(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(); err != nil {
		fmt.Fprintf(os.Stderr, "veto: warning: audit log rotation failed: %v\n", err)
	}

	event.Target = redact.Redact(event.Target)
	event.Reason = redact.Redact(event.Reason)

	data, err := json.Marshal(event)
	if err != nil {
		fmt.Fprintf(os.Stderr, "veto: warning: audit log marshal failed: %v\n", err)
		return
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "veto: warning: audit log write failed: %v\n", err)
	}
}

// Close closes the underlying file.
func (l *Log) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
