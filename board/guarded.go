package board

import (
	"context"
	"errors"

	"github.com/jonwraymond/resultcache/resilience"
)

// IsClientError reports errors caused by the request rather than the
// repository. They should neither be retried nor open a circuit.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidFeature) ||
		errors.Is(err, ErrInvalidName)
}

type guardedRepository struct {
	repo Repository
	exec *resilience.Executor
}

// Guarded returns repo with every call run through exec.
func Guarded(repo Repository, exec *resilience.Executor) Repository {
	return &guardedRepository{repo: repo, exec: exec}
}

func (g *guardedRepository) List(ctx context.Context, project string) ([]Feature, error) {
	return resilience.Guard(g.exec, func(ctx context.Context) ([]Feature, error) {
		return g.repo.List(ctx, project)
	})(ctx)
}

func (g *guardedRepository) Get(ctx context.Context, project, id string) (Feature, error) {
	return resilience.Guard(g.exec, func(ctx context.Context) (Feature, error) {
		return g.repo.Get(ctx, project, id)
	})(ctx)
}

func (g *guardedRepository) Put(ctx context.Context, project string, f Feature) error {
	return g.exec.Execute(ctx, func(ctx context.Context) error {
		return g.repo.Put(ctx, project, f)
	})
}

func (g *guardedRepository) Delete(ctx context.Context, project, id string) error {
	return g.exec.Execute(ctx, func(ctx context.Context) error {
		return g.repo.Delete(ctx, project, id)
	})
}
