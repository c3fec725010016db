package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalProvider implements Provider on the local filesystem, mirroring the
// sink's object-name layout under a root directory. It backs diagnostics
// and backfill dry runs.
type LocalProvider struct {
	root string
}

// NewLocalProvider creates the root directory if needed.
func NewLocalProvider(root string) (*LocalProvider, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage root: %w", err)
	}
	return &LocalProvider{root: root}, nil
}

// Save writes the object under the root, creating partition directories as
// needed. An existing file at the same path is truncated, matching the
// overwrite semantics of the cloud sink.
func (l *LocalProvider) Save(ctx context.Context, objectName, _ string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(l.root, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write object %s: %w", objectName, err)
	}
	return nil
}
