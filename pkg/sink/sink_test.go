package sink

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/errdeck/errdeck/pkg/dispatch"
	"github.com/errdeck/errdeck/pkg/entry"
	"github.com/errdeck/errdeck/pkg/surface"
)

// countingSurface wraps the in-memory table and counts source
// registrations, so tests can verify the lazy setup runs at most once.
type countingSurface struct {
	*surface.Table
	registers atomic.Int32
}

func newCountingSurface() *countingSurface {
	return &countingSurface{Table: surface.NewTable()}
}

func (c *countingSurface) RegisterSource(id, name string) (surface.Source, error) {
	c.registers.Add(1)
	return c.Table.RegisterSource(id, name)
}

// captureNotifier records notifications for assertions.
type captureNotifier struct {
	mu      sync.Mutex
	added   [][]entry.Entry
	removed [][]entry.Entry

	addDelay time.Duration
	onAdd    func()
	addErr   error
}

func (n *captureNotifier) AddEntries(batch []entry.Entry) error {
	if n.addDelay > 0 {
		time.Sleep(n.addDelay)
	}
	if n.onAdd != nil {
		n.onAdd()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.addErr != nil {
		return n.addErr
	}
	n.added = append(n.added, batch)
	return nil
}

func (n *captureNotifier) RemoveEntries(batch []entry.Entry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removed = append(n.removed, batch)
	return nil
}

func (n *captureNotifier) addedBatches() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.added)
}

func newTestSink(t *testing.T, surf surface.Surface) *Sink {
	t.Helper()
	s, err := New(surf, dispatch.Sync{}, Config{SourceID: "test", SourceName: "Test Sink"}, nil)
	require.NoError(t, err)
	return s
}

func TestNew_NilCollaborators(t *testing.T) {
	_, err := New(nil, dispatch.Sync{}, Config{}, nil)
	assert.ErrorIs(t, err, ErrNilSurface)

	_, err = New(surface.NewTable(), nil, Config{}, nil)
	assert.ErrorIs(t, err, ErrNilDispatcher)
}

func TestSink_InitHappensOnce(t *testing.T) {
	surf := newCountingSurface()
	d := dispatch.NewSerial()
	defer d.Close()

	s, err := New(surf, d, Config{SourceID: "test"}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AddEntries([]entry.Entry{entry.New("test", entry.SeverityInfo, "hello")})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), surf.registers.Load())
}

func TestSink_EmptyBatchNeverInitializes(t *testing.T) {
	surf := newCountingSurface()
	s := newTestSink(t, surf)

	require.NoError(t, s.AddEntries(nil))
	require.NoError(t, s.AddEntries([]entry.Entry{}))

	assert.Equal(t, int32(0), surf.registers.Load())
}

func TestSink_AddEntriesReachesSurfaceAndSubscribers(t *testing.T) {
	surf := newCountingSurface()
	s := newTestSink(t, surf)

	n1 := &captureNotifier{}
	n2 := &captureNotifier{}
	s.Subscribe(n1)
	s.Subscribe(n2)

	batch := []entry.Entry{entry.New("test", entry.SeverityError, "boom")}
	require.NoError(t, s.AddEntries(batch))

	assert.Equal(t, 1, n1.addedBatches())
	assert.Equal(t, 1, n2.addedBatches())

	visible, err := surf.VisibleEntries("test")
	require.NoError(t, err)
	assert.Len(t, visible, 1)
}

func TestSink_RemoveEntriesReachesSurfaceAndSubscribers(t *testing.T) {
	surf := newCountingSurface()
	s := newTestSink(t, surf)

	n := &captureNotifier{}
	s.Subscribe(n)

	batch := []entry.Entry{entry.New("test", entry.SeverityError, "boom")}
	require.NoError(t, s.AddEntries(batch))
	require.NoError(t, s.RemoveEntries(batch))

	visible, err := surf.VisibleEntries("test")
	require.NoError(t, err)
	assert.Empty(t, visible)

	n.mu.Lock()
	defer n.mu.Unlock()
	require.Len(t, n.removed, 1)
	assert.Len(t, n.removed[0], 1)
}

func TestSink_SubscriberIsolation(t *testing.T) {
	s := newTestSink(t, newCountingSurface())

	slow := &captureNotifier{addDelay: 50 * time.Millisecond}
	other := &captureNotifier{}
	subA := s.Subscribe(other)
	s.Subscribe(slow)

	done := make(chan error, 1)
	go func() {
		done <- s.AddEntries([]entry.Entry{entry.New("test", entry.SeverityError, "x")})
	}()

	// Close A while the slow delivery to the other subscriber may be in
	// flight. Neither side should error or hang.
	require.NoError(t, subA.Close())
	require.NoError(t, <-done)
	assert.Equal(t, 1, slow.addedBatches())
}

func TestSink_ClosedSubscriptionIgnored(t *testing.T) {
	s := newTestSink(t, newCountingSurface())

	n := &captureNotifier{}
	sub := s.Subscribe(n)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close()) // idempotent

	require.NoError(t, s.AddEntries([]entry.Entry{entry.New("test", entry.SeverityError, "x")}))
	assert.Equal(t, 0, n.addedBatches())
}

func TestSink_RegistryPruning(t *testing.T) {
	s := newTestSink(t, newCountingSurface())

	subs := make([]*Subscription, 3)
	for i := range subs {
		subs[i] = s.Subscribe(&captureNotifier{})
	}
	require.NoError(t, subs[0].Close())

	// Churn: every Subscribe prunes first, so the registry never exceeds
	// active + 1 regardless of how many handles have come and gone.
	for i := 0; i < 50; i++ {
		sub := s.Subscribe(&captureNotifier{})
		require.NoError(t, sub.Close())
	}
	s.Subscribe(&captureNotifier{})

	s.subMu.Lock()
	size := len(s.subs)
	s.subMu.Unlock()
	assert.LessOrEqual(t, size, 4, "2 surviving + 1 new + at most 1 stale")
}

func TestSink_ClearOwnScope(t *testing.T) {
	surf := newCountingSurface()
	s := newTestSink(t, surf)

	// A foreign producer shares the surface.
	foreign, err := surf.Table.RegisterSource("other", "Other")
	require.NoError(t, err)
	require.NoError(t, foreign.AddEntries([]entry.Entry{entry.New("other", entry.SeverityError, "not ours")}))

	n := &captureNotifier{}
	s.Subscribe(n)
	require.NoError(t, s.AddEntries([]entry.Entry{
		entry.New("test", entry.SeverityWarning, "ours 1"),
		entry.New("test", entry.SeverityWarning, "ours 2"),
	}))

	require.NoError(t, s.ClearOwn())

	own, err := surf.VisibleEntries("test")
	require.NoError(t, err)
	assert.Empty(t, own)

	theirs, err := surf.VisibleEntries("other")
	require.NoError(t, err)
	assert.Len(t, theirs, 1)

	n.mu.Lock()
	defer n.mu.Unlock()
	require.Len(t, n.removed, 1)
	assert.Len(t, n.removed[0], 2)
}

func TestSink_ClearOwnNoVisibleEntries(t *testing.T) {
	s := newTestSink(t, newCountingSurface())
	n := &captureNotifier{}
	s.Subscribe(n)

	require.NoError(t, s.ClearOwn())

	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Empty(t, n.removed)
}

func TestSink_SubscriberErrorDoesNotStopDelivery(t *testing.T) {
	s := newTestSink(t, newCountingSurface())

	bad := &captureNotifier{addErr: errors.New("subscriber broke")}
	good := &captureNotifier{}
	s.Subscribe(bad)
	s.Subscribe(good)

	err := s.AddEntries([]entry.Entry{entry.New("test", entry.SeverityError, "x")})
	assert.ErrorIs(t, err, ErrDeliver)
	assert.Equal(t, 1, good.addedBatches())
}

func TestSink_ReentrantRegistryAccess(t *testing.T) {
	s := newTestSink(t, newCountingSurface())

	other := &captureNotifier{}
	otherSub := s.Subscribe(other)

	// The notifier unsubscribes a sibling and registers a replacement
	// from inside the callback. The registry lock is not held during
	// delivery, so neither call may deadlock.
	n := &captureNotifier{}
	n.onAdd = func() {
		_ = otherSub.Close()
		s.Subscribe(&captureNotifier{})
	}
	s.Subscribe(n)

	require.NoError(t, s.AddEntries([]entry.Entry{entry.New("test", entry.SeverityError, "first")}))
	assert.Equal(t, 1, n.addedBatches())
}

func TestSink_BringToFront(t *testing.T) {
	raised := 0
	tbl := surface.NewRaisableTable(func() error {
		raised++
		return nil
	})
	s, err := New(tbl, dispatch.Sync{}, Config{SourceID: "test"}, nil)
	require.NoError(t, err)

	require.NoError(t, s.BringToFront())
	assert.Equal(t, 1, raised)
}

func TestSink_BringToFrontWithoutCapability(t *testing.T) {
	s, err := New(plainSurface{t: surface.NewTable()}, dispatch.Sync{}, Config{SourceID: "test"}, nil)
	require.NoError(t, err)
	assert.NoError(t, s.BringToFront())
}

// plainSurface hides the table's Raiser capability behind a named field
// so only the Surface methods are visible.
type plainSurface struct{ t *surface.Table }

func (p plainSurface) RegisterSource(id, name string) (surface.Source, error) {
	return p.t.RegisterSource(id, name)
}

func (p plainSurface) VisibleEntries(tag string) ([]entry.Entry, error) {
	return p.t.VisibleEntries(tag)
}

func TestSink_Close(t *testing.T) {
	surf := newCountingSurface()
	s := newTestSink(t, surf)

	require.NoError(t, s.AddEntries([]entry.Entry{entry.New("test", entry.SeverityError, "x")}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // idempotent

	// The source registration is withdrawn, so its contribution is gone
	// and the ID is free again.
	visible, err := surf.VisibleEntries("test")
	require.NoError(t, err)
	assert.Empty(t, visible)

	// Operations after Close fail loudly.
	assert.ErrorIs(t, s.AddEntries([]entry.Entry{entry.New("test", entry.SeverityError, "y")}), ErrSinkClosed)
	assert.ErrorIs(t, s.RemoveEntries([]entry.Entry{entry.New("test", entry.SeverityError, "y")}), ErrSinkClosed)
	assert.ErrorIs(t, s.ClearOwn(), ErrSinkClosed)
	assert.ErrorIs(t, s.BringToFront(), ErrSinkClosed)
}

func TestSink_CloseBeforeInit(t *testing.T) {
	surf := newCountingSurface()
	s := newTestSink(t, surf)

	require.NoError(t, s.Close())
	assert.Equal(t, int32(0), surf.registers.Load())
}
