package settings

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/resultcache/cache"
)

type memorySource struct {
	mu    sync.Mutex
	doc   Settings
	err   error
	gate  chan struct{}
	loads atomic.Int32
}

func (m *memorySource) Load(ctx context.Context) (Settings, error) {
	m.loads.Add(1)
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone(), m.err
}

func (m *memorySource) set(doc Settings, err error) {
	m.mu.Lock()
	m.doc, m.err = doc, err
	m.mu.Unlock()
}

type readOnly struct{ Source }

// heldSource behaves like a file. Once held is set, the next Load copies
// the document, closes snapped and blocks until release is closed.
type heldSource struct {
	mu         sync.Mutex
	doc        Settings
	held       atomic.Bool
	snapped    chan struct{}
	release    chan struct{}
	beforeSave func()
	loads      atomic.Int32
}

func newHeldSource(doc Settings) *heldSource {
	return &heldSource{doc: doc, snapped: make(chan struct{}), release: make(chan struct{})}
}

func (h *heldSource) Load(context.Context) (Settings, error) {
	h.loads.Add(1)
	h.mu.Lock()
	doc := h.doc.Clone()
	h.mu.Unlock()

	if h.held.CompareAndSwap(true, false) {
		close(h.snapped)
		<-h.release
	}
	return doc, nil
}

func (h *heldSource) Save(_ context.Context, s Settings) error {
	if h.beforeSave != nil {
		h.beforeSave()
	}
	h.mu.Lock()
	h.doc = s.Clone()
	h.mu.Unlock()
	return nil
}

func (h *heldSource) set(doc Settings) {
	h.mu.Lock()
	h.doc = doc
	h.mu.Unlock()
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStore(t *testing.T, src Source, cfg cache.Config) *Store {
	t.Helper()
	s, err := NewStore(src, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	_, err := NewStore(nil, cache.Config{})
	assert.ErrorIs(t, err, cache.ErrInvalidConfig)

	_, err = NewStore(&memorySource{doc: Defaults()}, cache.Config{MaxEntries: -1})
	assert.ErrorIs(t, err, cache.ErrInvalidConfig)
}

func TestStore_GetLoadsOnce(t *testing.T) {
	src := &memorySource{doc: Defaults(), gate: make(chan struct{})}
	store := newStore(t, src, cache.Config{})

	const callers = 20
	var wg sync.WaitGroup
	results := make([]Settings, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = store.Get(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return store.Stats().InFlight == 1 && store.Stats().Joins+store.Stats().Misses == callers },
		time.Second, time.Millisecond)
	close(src.gate)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, Defaults(), results[i])
	}
	assert.EqualValues(t, 1, src.loads.Load())

	_, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.loads.Load(), "fresh document reloaded")
}

func TestStore_GetReturnsCopy(t *testing.T) {
	doc := Defaults()
	doc.Features = map[string]bool{"autoMode": true}
	store := newStore(t, &memorySource{doc: doc}, cache.Config{})

	first, err := store.Get(context.Background())
	require.NoError(t, err)
	first.Features["autoMode"] = false

	second, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Enabled("autoMode"))
}

func TestStore_LoadErrorNotCached(t *testing.T) {
	src := &memorySource{err: errors.New("disk unavailable")}
	store := newStore(t, src, cache.Config{})

	_, err := store.Get(context.Background())
	require.EqualError(t, err, "disk unavailable")

	src.set(Defaults(), nil)
	got, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
	assert.EqualValues(t, 2, src.loads.Load())
}

func TestStore_StaleWhileRevalidate(t *testing.T) {
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	src := &memorySource{doc: Defaults()}
	store := newStore(t, src, cache.Config{DefaultTTL: time.Minute, Clock: clk.Now})

	_, err := store.Get(context.Background())
	require.NoError(t, err)

	dark := Defaults()
	dark.Theme = ThemeDark
	src.set(dark, nil)
	clk.Advance(90 * time.Second)

	stale, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ThemeSystem, stale.Theme, "stale document served immediately")

	require.Eventually(t, func() bool {
		got, err := store.Get(context.Background())
		return err == nil && got.Theme == ThemeDark
	}, time.Second, time.Millisecond)
	assert.EqualValues(t, 2, src.loads.Load())
	assert.EqualValues(t, 1, store.Stats().Refreshes)
}

func TestStore_Update(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	src := NewFileSource(path)
	store := newStore(t, src, cache.Config{})

	got, err := store.Update(context.Background(), func(s *Settings) error {
		s.Theme = ThemeDark
		s.Features = map[string]bool{"autoMode": true}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, got.Theme)

	cached, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, got, cached)

	onDisk, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, got, onDisk)
}

func TestStore_UpdateRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	boom := errors.New("boom")

	tests := []struct {
		name    string
		fn      func(*Settings) error
		wantErr error
	}{
		{"callback error", func(*Settings) error { return boom }, boom},
		{"invalid result", func(s *Settings) error { s.MaxConcurrency = 0; return nil }, ErrInvalidSettings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewFileSource(path)
			store := newStore(t, src, cache.Config{})

			_, err := store.Update(context.Background(), tt.fn)
			assert.ErrorIs(t, err, tt.wantErr)

			got, err := store.Get(context.Background())
			require.NoError(t, err)
			assert.Equal(t, Defaults(), got)
			assert.NoFileExists(t, path)
		})
	}
}

func TestStore_UpdateReadOnly(t *testing.T) {
	store := newStore(t, readOnly{&memorySource{doc: Defaults()}}, cache.Config{})

	_, err := store.Update(context.Background(), func(*Settings) error { return nil })
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestStore_UpdateReloadsStaleDocument(t *testing.T) {
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	src := newHeldSource(Defaults())
	store := newStore(t, src, cache.Config{DefaultTTL: time.Minute, Clock: clk.Now})

	_, err := store.Get(context.Background())
	require.NoError(t, err)

	edited := Defaults()
	edited.MaxConcurrency = 8
	src.set(edited)
	clk.Advance(90 * time.Second)

	got, err := store.Update(context.Background(), func(s *Settings) error {
		s.Theme = ThemeDark
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, got.Theme)
	assert.Equal(t, 8, got.MaxConcurrency, "merged onto the current file")
	assert.Zero(t, store.Stats().Refreshes, "stale document not served to Update")

	cached, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, got, cached)
}

func TestStore_UpdateOutlastsRefreshStartedBeforeSave(t *testing.T) {
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	src := newHeldSource(Defaults())
	store := newStore(t, src, cache.Config{DefaultTTL: time.Minute, Clock: clk.Now})

	_, err := store.Get(context.Background())
	require.NoError(t, err)

	// Right before the file is written, a reader finds the document stale
	// and starts a background refresh that copies the old file and stalls.
	src.beforeSave = func() {
		clk.Advance(90 * time.Second)
		src.held.Store(true)
		stale, err := store.Get(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, ThemeSystem, stale.Theme)
		<-src.snapped
	}

	done := make(chan error, 1)
	go func() {
		_, err := store.Update(context.Background(), func(s *Settings) error {
			s.Theme = ThemeDark
			return nil
		})
		done <- err
	}()

	require.Eventually(t, func() bool { return store.Stats().Joins == 1 }, time.Second, time.Millisecond,
		"Update waits for the running refresh")
	close(src.release)
	require.NoError(t, <-done)

	got, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, got.Theme, "refresh of the old file did not overwrite the update")
	assert.EqualValues(t, 1, store.Stats().Refreshes)
}

func TestStore_Reload(t *testing.T) {
	src := &memorySource{doc: Defaults()}
	store := newStore(t, src, cache.Config{DefaultTTL: time.Hour})

	_, err := store.Get(context.Background())
	require.NoError(t, err)

	light := Defaults()
	light.Theme = ThemeLight
	src.set(light, nil)

	got, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, got.Theme)

	got, err = store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, got.Theme)
	assert.EqualValues(t, 2, src.loads.Load())
}

func TestStore_ReloadSharedByConcurrentCallers(t *testing.T) {
	src := &memorySource{doc: Defaults(), gate: make(chan struct{})}
	store := newStore(t, src, cache.Config{})

	var wg, ready sync.WaitGroup
	for range 10 {
		wg.Add(1)
		ready.Add(1)
		go func() {
			defer wg.Done()
			ready.Done()
			_, err := store.Reload(context.Background())
			assert.NoError(t, err)
		}()
	}

	ready.Wait()
	require.Eventually(t, func() bool { return src.loads.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.EqualValues(t, 1, src.loads.Load())
}

func TestStore_ReloadCallerCancelled(t *testing.T) {
	src := &memorySource{doc: Defaults(), gate: make(chan struct{})}
	store := newStore(t, src, cache.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Reload(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(src.gate)
	require.Eventually(t, func() bool { return store.Stats().Entries == 1 }, time.Second, time.Millisecond)
}

func TestStore_Invalidate(t *testing.T) {
	src := &memorySource{doc: Defaults()}
	store := newStore(t, src, cache.Config{})

	assert.False(t, store.Invalidate(), "nothing cached yet")

	_, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, store.Invalidate())

	_, err = store.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.loads.Load())
}

func TestStore_Close(t *testing.T) {
	store, err := NewStore(&memorySource{doc: Defaults()}, cache.Config{})
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.Get(context.Background())
	assert.ErrorIs(t, err, cache.ErrClosed)
	assert.True(t, store.Stats().Closed)
}
