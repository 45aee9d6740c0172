package board

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/resultcache/cache"
	"github.com/jonwraymond/resultcache/resilience"
)

type flakyRepo struct {
	Repository
	failures atomic.Int32
	calls    atomic.Int32
}

func (r *flakyRepo) List(ctx context.Context, project string) ([]Feature, error) {
	r.calls.Add(1)
	if r.failures.Add(-1) >= 0 {
		return nil, errors.New("disk busy")
	}
	return r.Repository.List(ctx, project)
}

func (r *flakyRepo) Get(ctx context.Context, project, id string) (Feature, error) {
	r.calls.Add(1)
	return r.Repository.Get(ctx, project, id)
}

func retryable(err error) bool {
	return !IsClientError(err) && !resilience.IsRejection(err)
}

func TestIsClientError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("%w: p/x", ErrNotFound), true},
		{ErrInvalidFeature, true},
		{ValidateName("a/b"), true},
		{errors.New("disk busy"), false},
		{resilience.ErrCircuitOpen, false},
		{nil, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsClientError(tt.err), "IsClientError(%v)", tt.err)
	}
}

func TestGuarded_RetriesTransientFailures(t *testing.T) {
	inner := &flakyRepo{Repository: NewDirRepository(t.TempDir())}
	inner.failures.Store(2)

	exec := resilience.NewExecutor(resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		RetryIf:      retryable,
	})))
	repo := Guarded(inner, exec)

	fs, err := repo.List(context.Background(), "webapp")
	require.NoError(t, err)
	assert.Empty(t, fs)
	assert.EqualValues(t, 3, inner.calls.Load())
}

func TestGuarded_NotFoundNotRetried(t *testing.T) {
	inner := &flakyRepo{Repository: NewDirRepository(t.TempDir())}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return !IsClientError(err) },
	})
	exec := resilience.NewExecutor(
		resilience.WithCircuitBreaker(breaker),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			RetryIf:      retryable,
		})),
	)
	repo := Guarded(inner, exec)

	_, err := repo.Get(context.Background(), "webapp", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 1, inner.calls.Load())
	assert.Equal(t, resilience.StateClosed, breaker.State())
}

func TestGuarded_WritesPassThrough(t *testing.T) {
	repo := Guarded(NewDirRepository(t.TempDir()), resilience.NewExecutor(resilience.WithTimeout(time.Second)))
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "webapp", feature("login", 0)))
	got, err := repo.Get(ctx, "webapp", "login")
	require.NoError(t, err)
	assert.Equal(t, "login", got.ID)

	require.NoError(t, repo.Delete(ctx, "webapp", "login"))
	assert.ErrorIs(t, repo.Delete(ctx, "webapp", "login"), ErrNotFound)
}

func TestGuarded_ServiceSeesOpenCircuit(t *testing.T) {
	inner := &flakyRepo{Repository: NewDirRepository(t.TempDir())}
	inner.failures.Store(100)

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	svc, err := NewService(Guarded(inner, resilience.NewExecutor(resilience.WithCircuitBreaker(breaker))), cache.Config{DefaultTTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	for range 2 {
		_, err := svc.List(context.Background(), "webapp")
		require.Error(t, err)
	}

	_, err = svc.List(context.Background(), "webapp")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.EqualValues(t, 2, inner.calls.Load())
}
