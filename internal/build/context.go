package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	git "github.com/go-git/go-git/v5"
)

// Resolves a build context argument to a local directory.
//
// A git URL is shallow-cloned into a temporary directory; the returned
// cleanup removes it. A local path is made absolute and verified to be a
// directory; its cleanup is a no-op.
func ResolveContext(ctx context.Context, src string) (string, func(), error) {
	if isGitURL(src) {
		return cloneContext(ctx, src)
	}

	dir, err := filepath.Abs(src)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrContext, err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrContext, err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("%w: %s is not a directory", ErrContext, dir)
	}

	return dir, func() {}, nil
}

// Shallow-clones a git repository into a temporary build context.
func cloneContext(ctx context.Context, url string) (string, func(), error) {
	tmp, err := os.MkdirTemp("", "slipway-context-*")
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrContext, err)
	}

	if _, err := git.PlainCloneContext(ctx, tmp, false, &git.CloneOptions{
		URL:   url,
		Depth: 1,
	}); err != nil {
		os.RemoveAll(tmp)
		return "", nil, fmt.Errorf("%w: clone %s: %w", ErrContext, url, err)
	}

	return tmp, func() { os.RemoveAll(tmp) }, nil
}

// Whether the context argument names a git repository rather than a local
// directory.
func isGitURL(s string) bool {
	if strings.HasPrefix(s, "git@") || strings.HasPrefix(s, "git://") || strings.HasPrefix(s, "ssh://") {
		return true
	}
	return (strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")) && strings.HasSuffix(s, ".git")
}

// Resolves a copy source inside the build context root.
//
// Absolute paths and paths that climb out of the context are rejected as
// invalid recipe input. The surviving relative path is joined with
// SecureJoin so symlinks inside the context cannot escape it either.
func resolveContextPath(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: absolute copy source %q", ErrContext, rel)
	}

	cleaned := filepath.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: copy source %q escapes the build context", ErrContext, rel)
	}

	joined, err := securejoin.SecureJoin(root, cleaned)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrContext, err)
	}
	return joined, nil
}
