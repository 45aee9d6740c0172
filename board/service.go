package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/resultcache/cache"
	"github.com/jonwraymond/resultcache/observe"
)

// Cache key kinds. Lists are keyed features:<project>, single features
// feature:<project>:<id>.
const (
	ListKind    = "features"
	FeatureKind = "feature"
)

type featureRef struct {
	project string
	id      string
}

// Service reads features through two caches and invalidates them on writes.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Reads: concurrent reads of the same list or feature share one
//     repository call; errors are never cached.
//   - Writes: Save and Delete drop every cached list and feature of the
//     project once the repository call succeeds.
type Service struct {
	repo  Repository
	lists *cache.AsyncCache[string, []Feature]
	items *cache.AsyncCache[string, Feature]
	log   observe.Logger
	now   func() time.Time

	list cache.Func[string, []Feature]
	get  cache.Func[featureRef, Feature]
}

// NewService creates a Service. cfg configures both caches; their names
// default to "board.features" and "board.feature".
func NewService(repo Repository, cfg cache.Config) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: nil repository", cache.ErrInvalidConfig)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "board"
	}
	listCfg, itemCfg := cfg, cfg
	if cfg.Name == "" {
		listCfg.Name = "board." + ListKind
		itemCfg.Name = "board." + FeatureKind
	} else {
		listCfg.Name = cfg.Name + "." + ListKind
		itemCfg.Name = cfg.Name + "." + FeatureKind
	}

	lists, err := cache.New[string, []Feature](listCfg)
	if err != nil {
		return nil, err
	}
	items, err := cache.New[string, Feature](itemCfg)
	if err != nil {
		lists.Dispose()
		return nil, err
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = observe.NopLogger()
	}

	s := &Service{repo: repo, lists: lists, items: items, log: log, now: now}

	s.list = cache.Memoize(lists,
		func(project string) (string, error) { return cache.Key(ListKind, project), nil },
		repo.List)
	s.get = cache.Memoize(items,
		func(ref featureRef) (string, error) { return cache.Key(FeatureKind, ref.project, ref.id), nil },
		func(ctx context.Context, ref featureRef) (Feature, error) {
			return repo.Get(ctx, ref.project, ref.id)
		})

	return s, nil
}

// List returns the project's features ordered by priority, then ID.
func (s *Service) List(ctx context.Context, project string) ([]Feature, error) {
	if err := ValidateName(project); err != nil {
		return nil, err
	}

	fs, err := s.list(ctx, project)
	if err != nil {
		return nil, err
	}
	return cloneAll(fs), nil
}

// Get returns one feature.
func (s *Service) Get(ctx context.Context, project, id string) (Feature, error) {
	if err := errors.Join(ValidateName(project), ValidateName(id)); err != nil {
		return Feature{}, err
	}

	f, err := s.get(ctx, featureRef{project: project, id: id})
	if err != nil {
		return Feature{}, err
	}
	return f.Clone(), nil
}

// Save stamps UpdatedAt, writes f and invalidates the project.
func (s *Service) Save(ctx context.Context, project string, f Feature) (Feature, error) {
	if err := ValidateName(project); err != nil {
		return Feature{}, err
	}
	if err := f.Validate(); err != nil {
		return Feature{}, err
	}

	f = f.Clone()
	f.UpdatedAt = s.now().UTC()
	if err := s.repo.Put(ctx, project, f); err != nil {
		return Feature{}, err
	}

	s.InvalidateProject(project)
	return f, nil
}

// Delete removes a feature and invalidates the project.
func (s *Service) Delete(ctx context.Context, project, id string) error {
	if err := errors.Join(ValidateName(project), ValidateName(id)); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, project, id); err != nil {
		return err
	}

	s.InvalidateProject(project)
	return nil
}

// InvalidateProject drops the project's cached list and features and
// returns how many entries were removed. Other projects are untouched.
func (s *Service) InvalidateProject(project string) int {
	n := s.lists.InvalidateBy(cache.Scope(ListKind, project)) +
		s.items.InvalidateBy(cache.Scope(FeatureKind, project))

	if n > 0 {
		s.log.Debug(context.Background(), "project invalidated",
			observe.F("project", project), observe.F("entries", n))
	}
	return n
}

// ListStats returns stats of the list cache.
func (s *Service) ListStats() cache.Stats {
	return s.lists.Stats()
}

// FeatureStats returns stats of the single-feature cache.
func (s *Service) FeatureStats() cache.Stats {
	return s.items.Stats()
}

// Close disposes both caches.
func (s *Service) Close() error {
	return errors.Join(s.lists.Close(), s.items.Close())
}
