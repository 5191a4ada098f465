package server

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/slipwayhq/slipway/internal/manifest"
	"github.com/slipwayhq/slipway/internal/paths"
)

// File holding per-service profile selections inside the state directory.
const selectionsFilename = "selections.json"

// Persisted per-service profile selections.
//
// Each service starts on the full profile. An explicit profile argument
// moves the selection, and the selection's own rules make the move one-way:
// slim is terminal. Persisting the map keeps a fallback in force across
// daemon restarts.
type selections struct {
	path      string
	mu        sync.Mutex
	byService map[string]*manifest.Selection
}

func newSelections(stateDir string) *selections {
	s := &selections{
		path:      filepath.Join(stateDir, selectionsFilename),
		byService: map[string]*manifest.Selection{},
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return s
	}
	var stored map[string]string
	if err := json.Unmarshal(data, &stored); err != nil {
		slog.Warn("discarding corrupt selection state", "path", s.path, "error", err)
		return s
	}

	for service, name := range stored {
		profile, err := manifest.ParseProfile(name)
		if err != nil {
			continue
		}
		sel := manifest.NewSelection()
		if profile != sel.Current() {
			if err := sel.Select(profile); err != nil {
				continue
			}
		}
		s.byService[service] = sel
	}
	return s
}

// Resolves the profile for a service.
//
// An empty argument returns the current selection. A named profile moves
// the selection first, subject to the transition rules, then returns it.
func (s *selections) resolve(service, arg string) (manifest.ProfileName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel, ok := s.byService[service]
	if !ok {
		sel = manifest.NewSelection()
		s.byService[service] = sel
	}

	if arg == "" {
		return sel.Current(), nil
	}

	profile, err := manifest.ParseProfile(arg)
	if err != nil {
		return "", err
	}
	if err := sel.Select(profile); err != nil {
		return "", err
	}

	s.persist()
	return sel.Current(), nil
}

// Writes the selection map. Callers hold the mutex.
func (s *selections) persist() {
	stored := make(map[string]string, len(s.byService))
	for service, sel := range s.byService {
		stored[service] = string(sel.Current())
	}

	data, err := json.Marshal(stored)
	if err != nil {
		slog.Warn("failed to encode selection state", "error", err)
		return
	}
	if err := os.WriteFile(s.path, data, paths.DefaultFileMode); err != nil {
		slog.Warn("failed to persist selection state", "path", s.path, "error", err)
	}
}
