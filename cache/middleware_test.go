package cache

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
)

type issueQuery struct {
	Repo  string
	State string
}

// mockFetcher tracks calls and returns configured results
type mockFetcher struct {
	calls  atomic.Int32
	result []string
	err    error
}

func (m *mockFetcher) fetch(_ context.Context, q issueQuery) ([]string, error) {
	m.calls.Add(1)
	return m.result, m.err
}

func issueKey(q issueQuery) (string, error) {
	key := Key("issues", q.Repo, q.State)
	return key, ValidateKey(key)
}

func TestMiddleware_CacheHit(t *testing.T) {
	c := newTestCache[[]string](t, Config{})
	fetcher := &mockFetcher{result: []string{"#1", "#2"}}
	fetch := Memoize(c, issueKey, fetcher.fetch)

	ctx := context.Background()
	q := issueQuery{Repo: "acme/board", State: "open"}

	for range 3 {
		got, err := fetch(ctx, q)
		if err != nil {
			t.Fatalf("call failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("unexpected result: %v", got)
		}
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestMiddleware_CacheMiss(t *testing.T) {
	c := newTestCache[[]string](t, Config{})
	fetcher := &mockFetcher{result: []string{"#1"}}
	fetch := Memoize(c, issueKey, fetcher.fetch)
	ctx := context.Background()

	_, _ = fetch(ctx, issueQuery{Repo: "acme/board", State: "open"})
	_, _ = fetch(ctx, issueQuery{Repo: "acme/board", State: "closed"})

	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("expected 2 calls (cache miss), got %d", got)
	}
}

func TestMiddleware_ErrorsNotCached(t *testing.T) {
	c := newTestCache[[]string](t, Config{})
	fetcher := &mockFetcher{err: errors.New("rate limited")}
	fetch := Memoize(c, issueKey, fetcher.fetch)
	ctx := context.Background()
	q := issueQuery{Repo: "acme/board"}

	for range 2 {
		if _, err := fetch(ctx, q); err == nil {
			t.Fatal("expected error")
		}
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("expected 2 calls (errors not cached), got %d", got)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestMiddleware_Bypass(t *testing.T) {
	c := newTestCache[[]string](t, Config{})
	fetcher := &mockFetcher{result: []string{"#1"}}
	mw := NewMiddleware(c, issueKey, func(q issueQuery) bool { return q.State == "draft" })
	fetch := mw.Wrap(fetcher.fetch)
	ctx := context.Background()

	for range 2 {
		_, _ = fetch(ctx, issueQuery{Repo: "acme/board", State: "draft"})
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("expected 2 calls (bypassed), got %d", got)
	}
	if c.Len() != 0 {
		t.Errorf("bypassed results must not be stored, Len() = %d", c.Len())
	}
}

func TestMiddleware_KeyErrorExecutesDirectly(t *testing.T) {
	c := newTestCache[[]string](t, Config{})
	fetcher := &mockFetcher{result: []string{"#1"}}
	badKey := func(issueQuery) (string, error) { return "", ErrInvalidKey }
	fetch := Memoize(c, badKey, fetcher.fetch)

	got, err := fetch(context.Background(), issueQuery{})
	if err != nil || len(got) != 1 {
		t.Fatalf("fetch() = %v, %v", got, err)
	}
	if c.Len() != 0 {
		t.Error("results with no key must not be stored")
	}
}

func TestMiddleware_OptionsApplied(t *testing.T) {
	c := newTestCache[int](t, Config{})
	var calls atomic.Int32
	fn := func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		return n * 2, nil
	}
	double := NewMiddleware(c, func(n int) (string, error) { return strconv.Itoa(n), nil }, nil, WithForceRefresh()).Wrap(fn)

	for range 2 {
		if v, _ := double(context.Background(), 4); v != 8 {
			t.Fatalf("double(4) = %d", v)
		}
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected force refresh on every call, got %d calls", got)
	}
}
