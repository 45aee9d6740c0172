package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Repository stores features per project. Names passed to it are already
// validated.
type Repository interface {
	List(ctx context.Context, project string) ([]Feature, error)
	Get(ctx context.Context, project, id string) (Feature, error)
	Put(ctx context.Context, project string, f Feature) error
	Delete(ctx context.Context, project, id string) error
}

// DirRepository keeps each feature as <root>/<project>/features/<id>.json.
type DirRepository struct {
	root string
}

// NewDirRepository creates a repository rooted at root.
func NewDirRepository(root string) *DirRepository {
	return &DirRepository{root: filepath.Clean(root)}
}

func (r *DirRepository) dir(project string) string {
	return filepath.Join(r.root, project, "features")
}

func (r *DirRepository) file(project, id string) string {
	return filepath.Join(r.dir(project), id+".json")
}

// List returns the project's features ordered by priority, then ID. A
// project without a features directory has none.
func (r *DirRepository) List(ctx context.Context, project string) ([]Feature, error) {
	entries, err := os.ReadDir(r.dir(project))
	if errors.Is(err, fs.ErrNotExist) {
		return []Feature{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("board: list %s: %w", project, err)
	}

	features := make([]Feature, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}

		f, err := r.Get(ctx, project, strings.TrimSuffix(name, ".json"))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}

	sortFeatures(features)
	return features, nil
}

// Get reads one feature.
func (r *DirRepository) Get(ctx context.Context, project, id string) (Feature, error) {
	if err := ctx.Err(); err != nil {
		return Feature{}, err
	}

	data, err := os.ReadFile(r.file(project, id))
	if errors.Is(err, fs.ErrNotExist) {
		return Feature{}, fmt.Errorf("%w: %s/%s", ErrNotFound, project, id)
	}
	if err != nil {
		return Feature{}, fmt.Errorf("board: read %s/%s: %w", project, id, err)
	}

	var f Feature
	if err := json.Unmarshal(data, &f); err != nil {
		return Feature{}, fmt.Errorf("%w: decode %s/%s: %v", ErrInvalidFeature, project, id, err)
	}
	if f.ID != id {
		return Feature{}, fmt.Errorf("%w: %s/%s holds id %q", ErrInvalidFeature, project, id, f.ID)
	}
	return f, nil
}

// Put writes f through a temporary file, replacing any previous version.
func (r *DirRepository) Put(ctx context.Context, project string, f Feature) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("board: encode %s/%s: %w", project, f.ID, err)
	}

	dir := r.dir(project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("board: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+f.ID+"-*.json")
	if err != nil {
		return fmt.Errorf("board: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("board: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("board: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), r.file(project, f.ID)); err != nil {
		return fmt.Errorf("board: replace %s/%s: %w", project, f.ID, err)
	}
	return nil
}

// Delete removes one feature.
func (r *DirRepository) Delete(ctx context.Context, project, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(r.file(project, id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, project, id)
	}
	if err != nil {
		return fmt.Errorf("board: delete %s/%s: %w", project, id, err)
	}
	return nil
}

var _ Repository = (*DirRepository)(nil)
