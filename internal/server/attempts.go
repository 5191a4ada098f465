package server

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/slipwayhq/slipway/internal/paths"
	"github.com/slipwayhq/slipway/internal/protocol"
)

const (

	// File holding the attempt history inside the state directory.
	attemptsFilename = "attempts.json"

	// Upper bound on persisted attempt records.
	maxAttempts = 50

	// How many attempts a status response reports.
	recentAttempts = 10
)

// A persisted, bounded history of build and launch attempts.
//
// The history survives daemon restarts so an operator can see why a service
// fell back to the slim profile after the fact.
type attemptLog struct {
	path    string
	mu      sync.Mutex
	entries []protocol.Attempt
}

// Loads the attempt history from the state directory. A missing or corrupt
// file starts an empty history.
func newAttemptLog(stateDir string) *attemptLog {
	l := &attemptLog{path: filepath.Join(stateDir, attemptsFilename)}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return l
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		slog.Warn("discarding corrupt attempt history", "path", l.path, "error", err)
		l.entries = nil
	}
	return l
}

// Appends an attempt and persists the trimmed history.
func (l *attemptLog) Record(a protocol.Attempt) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, a)
	if len(l.entries) > maxAttempts {
		l.entries = l.entries[len(l.entries)-maxAttempts:]
	}

	data, err := json.Marshal(l.entries)
	if err != nil {
		slog.Warn("failed to encode attempt history", "error", err)
		return
	}
	if err := os.WriteFile(l.path, data, paths.DefaultFileMode); err != nil {
		slog.Warn("failed to persist attempt history", "path", l.path, "error", err)
	}
}

// Returns up to n most recent attempts, newest last.
func (l *attemptLog) Recent(n int) []protocol.Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) <= n {
		return append([]protocol.Attempt(nil), l.entries...)
	}
	return append([]protocol.Attempt(nil), l.entries[len(l.entries)-n:]...)
}
