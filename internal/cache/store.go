package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/slipwayhq/slipway/internal/paths"
)

const (

	// Filename of the cached prefix archive within an entry directory.
	archiveName = "image.tar"

	// Filename of the metadata sidecar within an entry directory.
	metadataName = "metadata.json"
)

// Describes a cached prefix entry.
type Metadata struct {
	CreatedAt time.Time `json:"created_at"`
	BaseRef   string    `json:"base_ref"`
	Stages    []string  `json:"stages"`
}

// A content-addressed store of pre-source image prefixes.
//
// Each entry holds the OCI archive exported after the last pre-source stage,
// keyed by the accumulated prefix key. An unpinned base tag is deliberately
// frozen inside a cached prefix until the store is pruned.
type Store struct {
	dir string
}

// Creates a store rooted at dir. An empty dir uses the default cache path.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = paths.Cache()
	}
	return &Store{dir: dir}
}

// Looks up a cached prefix archive.
//
// Returns the archive path and true on a hit. Entries with a missing archive
// or an unreadable metadata sidecar are treated as misses.
func (s *Store) Get(key string) (string, bool) {
	entry := filepath.Join(s.dir, key)
	archive := filepath.Join(entry, archiveName)

	if _, err := os.Stat(archive); err != nil {
		return "", false
	}

	data, err := os.ReadFile(filepath.Join(entry, metadataName))
	if err != nil {
		return "", false
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		slog.Warn("corrupt cache metadata, treating as miss", "key", key, "error", err)
		return "", false
	}

	return archive, true
}

// Stores a prefix archive under the given key.
//
// The archive is copied into a temporary entry directory and renamed into
// place, so a concurrent reader never observes a partial entry.
func (s *Store) Put(key, archivePath string, meta Metadata) error {
	if err := os.MkdirAll(s.dir, paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrCache, err)
	}

	tmp, err := os.MkdirTemp(s.dir, "put-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCache, err)
	}
	defer os.RemoveAll(tmp)

	if err := copyFile(filepath.Join(tmp, archiveName), archivePath); err != nil {
		return fmt.Errorf("%w: %w", ErrCache, err)
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCache, err)
	}
	if err := os.WriteFile(filepath.Join(tmp, metadataName), data, paths.DefaultFileMode); err != nil {
		return fmt.Errorf("%w: %w", ErrCache, err)
	}

	entry := filepath.Join(s.dir, key)
	os.RemoveAll(entry)
	if err := os.Rename(tmp, entry); err != nil {
		return fmt.Errorf("%w: %w", ErrCache, err)
	}

	slog.Debug("prefix cached", "key", key, "base", meta.BaseRef)
	return nil
}

// Removes every entry from the store.
func (s *Store) Prune() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrCache, err)
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("%w: %w", ErrCache, err)
		}
	}

	slog.Info("cache pruned", "entries", len(entries))
	return nil
}

// Copies src to dest, creating dest with the default file mode.
func copyFile(dest, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, paths.DefaultFileMode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
