package board

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feature(id string, priority int) Feature {
	return Feature{
		ID:        id,
		Title:     "Feature " + id,
		Status:    StatusBacklog,
		Priority:  priority,
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestDirRepository_EmptyProject(t *testing.T) {
	repo := NewDirRepository(t.TempDir())

	fs, err := repo.List(context.Background(), "webapp")
	require.NoError(t, err)
	assert.Empty(t, fs)
	assert.NotNil(t, fs)
}

func TestDirRepository_PutGetList(t *testing.T) {
	root := t.TempDir()
	repo := NewDirRepository(root)
	ctx := context.Background()

	for _, f := range []Feature{feature("search", 2), feature("login", 0), feature("billing", 2)} {
		require.NoError(t, repo.Put(ctx, "webapp", f))
	}
	require.NoError(t, repo.Put(ctx, "mobile", feature("push", 1)))

	assert.FileExists(t, filepath.Join(root, "webapp", "features", "login.json"))

	got, err := repo.Get(ctx, "webapp", "login")
	require.NoError(t, err)
	assert.Equal(t, feature("login", 0), got)

	fs, err := repo.List(ctx, "webapp")
	require.NoError(t, err)
	require.Len(t, fs, 3)
	assert.Equal(t, "login", fs[0].ID)
	assert.Equal(t, "billing", fs[1].ID)
	assert.Equal(t, "search", fs[2].ID)
}

func TestDirRepository_PutReplaces(t *testing.T) {
	repo := NewDirRepository(t.TempDir())
	ctx := context.Background()

	f := feature("login", 0)
	require.NoError(t, repo.Put(ctx, "webapp", f))
	f.Status = StatusCompleted
	require.NoError(t, repo.Put(ctx, "webapp", f))

	got, err := repo.Get(ctx, "webapp", "login")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	fs, err := repo.List(ctx, "webapp")
	require.NoError(t, err)
	assert.Len(t, fs, 1)
}

func TestDirRepository_ListSkipsForeignFiles(t *testing.T) {
	root := t.TempDir()
	repo := NewDirRepository(root)
	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, "webapp", feature("login", 0)))

	dir := filepath.Join(root, "webapp", "features")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("todo"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".login-123.json"), []byte("{"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.json"), 0o755))

	fs, err := repo.List(ctx, "webapp")
	require.NoError(t, err)
	assert.Len(t, fs, 1)
}

func TestDirRepository_Errors(t *testing.T) {
	root := t.TempDir()
	repo := NewDirRepository(root)
	ctx := context.Background()

	_, err := repo.Get(ctx, "webapp", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "webapp", "missing"), ErrNotFound)

	dir := filepath.Join(root, "webapp", "features")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))
	_, err = repo.Get(ctx, "webapp", "broken")
	assert.ErrorIs(t, err, ErrInvalidFeature)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "renamed.json"), []byte(`{"id":"other"}`), 0o644))
	_, err = repo.Get(ctx, "webapp", "renamed")
	assert.ErrorIs(t, err, ErrInvalidFeature)
}

func TestDirRepository_Delete(t *testing.T) {
	repo := NewDirRepository(t.TempDir())
	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, "webapp", feature("login", 0)))

	require.NoError(t, repo.Delete(ctx, "webapp", "login"))

	_, err := repo.Get(ctx, "webapp", "login")
	assert.ErrorIs(t, err, ErrNotFound)
}
