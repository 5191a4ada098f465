package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"github.com/opencontainers/go-digest"

	"github.com/slipwayhq/slipway/internal/manifest"
)

// Computes deterministic keys from ordered, length-prefixed components.
//
// Length prefixes prevent ambiguity between component boundaries: the
// components ("ab", "c") and ("a", "bc") produce different sums.
type Hasher struct {
	h hash.Hash
}

// Creates a new [Hasher].
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Appends one component to the hash.
func (h *Hasher) Component(s string) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(s)))
	h.h.Write(length[:])
	h.h.Write([]byte(s))
}

// Returns the accumulated key as a hex string.
func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// Computes the key for one stage, chained onto its predecessor's key.
//
// The manifest stage keys over the manifest file's content digest rather
// than its path, so touching the file without changing it keeps the key.
// Source changes never reach this function: only pre-source stages are keyed.
func StageKey(predecessor string, stage manifest.Stage, manifestContent []byte) string {
	h := NewHasher()
	h.Component(predecessor)
	h.Component(string(stage.Kind))

	switch stage.Kind {
	case manifest.StageBase:
		h.Component(stage.Ref)
	case manifest.StagePackages:
		for _, pkg := range stage.Packages {
			h.Component(pkg)
		}
	case manifest.StageManifest:
		h.Component(stage.InstallName)
		h.Component(stage.Installer)
		h.Component(digest.FromBytes(manifestContent).String())
	}

	return h.Sum()
}

// Computes the accumulated key for a plan's pre-source prefix.
//
// readManifest supplies the dependency manifest's content for manifest
// stages, resolved against the build context by the caller.
func PrefixKey(pre []manifest.Stage, readManifest func(path string) ([]byte, error)) (string, error) {
	var key string
	for _, stage := range pre {
		var content []byte
		if stage.Kind == manifest.StageManifest {
			data, err := readManifest(stage.Manifest)
			if err != nil {
				return "", err
			}
			content = data
		}
		key = StageKey(key, stage, content)
	}
	return key, nil
}
