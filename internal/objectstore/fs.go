package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"fieldtag/internal/fileutil"
)

// FSStore stores payloads under a root directory and resolves them to
// file:// URIs.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed and returns the store.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("media directory not configured")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &FSStore{root: abs}, nil
}

func (f *FSStore) Upload(ctx context.Context, localPath, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(f.root, filepath.FromSlash(key))
	if !strings.HasPrefix(target, f.root+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes media directory", key)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}

	if err := fileutil.CopyFileVerified(localPath, target); err != nil {
		return "", fmt.Errorf("copy payload: %w", err)
	}

	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(target)}).String(), nil
}

func (f *FSStore) Delete(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("parse object uri: %w", err)
	}
	if parsed.Scheme != "file" {
		return fmt.Errorf("unexpected object uri scheme %q", parsed.Scheme)
	}

	target := filepath.Clean(filepath.FromSlash(parsed.Path))
	if !strings.HasPrefix(target, f.root+string(filepath.Separator)) {
		return fmt.Errorf("object uri %q outside media directory", uri)
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove object file: %w", err)
	}
	return nil
}

func (f *FSStore) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(f.root)
	if err != nil {
		return fmt.Errorf("stat media directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media path %s is not a directory", f.root)
	}
	return nil
}
