package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalProvider_SaveCreatesPartitionDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p, err := NewLocalProvider(root)
	require.NoError(t, err)

	err = p.Save(context.Background(), "datasets/dt=2025-12-17/20251217.csv", "text/csv", []byte("No\n1\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "datasets", "dt=2025-12-17", "20251217.csv"))
	require.NoError(t, err)
	require.Equal(t, "No\n1\n", string(data))
}

func TestLocalProvider_SaveOverwrites(t *testing.T) {
	t.Parallel()

	p, err := NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Save(ctx, "obj.csv", "text/csv", []byte("first")))
	require.NoError(t, p.Save(ctx, "obj.csv", "text/csv", []byte("second")))

	data, err := os.ReadFile(filepath.Join(p.root, "obj.csv"))
	require.NoError(t, err)
	require.Equal(t, "second", string(data))
}

func TestLocalProvider_CancelledContext(t *testing.T) {
	t.Parallel()

	p, err := NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, p.Save(ctx, "obj.csv", "text/csv", []byte("x")))
}

func TestNewLocalProvider_RequiresRoot(t *testing.T) {
	t.Parallel()

	_, err := NewLocalProvider("")
	require.Error(t, err)
}

func TestNoOpProvider(t *testing.T) {
	t.Parallel()

	var p NoOpProvider
	require.NoError(t, p.Save(context.Background(), "anything", "text/csv", nil))
}
