package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/errdeck/errdeck/pkg/migrate"
)

type captureMigrator struct {
	mu    sync.Mutex
	calls []migrate.Project
}

func (m *captureMigrator) Migrate(ctx context.Context, p migrate.Project) (*migrate.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, p)
	return &migrate.Result{Success: true}, nil
}

func (m *captureMigrator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestIsLegacyConfig(t *testing.T) {
	assert.True(t, isLegacyConfig("project.pins.yaml"))
	assert.True(t, isLegacyConfig("/a/b/app.pins.json"))
	assert.True(t, isLegacyConfig("x.pins.TOML"))
	assert.False(t, isLegacyConfig("project.yaml"))
	assert.False(t, isLegacyConfig("pins.yaml"))
	assert.False(t, isLegacyConfig("project.pins.txt"))
}

func TestProjectFileFor(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.proj"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.proj"), nil, 0644))

	got, err := projectFileFor(filepath.Join(dir, "x.pins.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.proj"), got)

	_, err = projectFileFor(filepath.Join(t.TempDir(), "x.pins.yaml"))
	assert.ErrorIs(t, err, ErrNoProjectFile)
}

func TestWatcher_TriggersOnPinFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.proj"), []byte("name = app\n"), 0644))

	m := &captureMigrator{}
	w := New(dir, m, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	pinsPath := filepath.Join(dir, "project.pins.yaml")
	require.NoError(t, os.WriteFile(pinsPath, []byte("pins: []\n"), 0644))

	require.Eventually(t, func() bool {
		return m.callCount() >= 1
	}, 5*time.Second, 50*time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, pinsPath, m.calls[0].LegacyConfig)
	assert.Equal(t, filepath.Join(dir, "app.proj"), m.calls[0].File)
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.proj"), []byte("name = app\n"), 0644))

	m := &captureMigrator{}
	w := New(dir, m, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))

	time.Sleep(2 * debounceDelay)
	assert.Equal(t, 0, m.callCount())
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.proj"), []byte("name = app\n"), 0644))

	m := &captureMigrator{}
	w := New(dir, m, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	pinsPath := filepath.Join(dir, "project.pins.yaml")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(pinsPath, []byte("pins: []\n"), 0644))
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return m.callCount() >= 1
	}, 5*time.Second, 50*time.Millisecond)

	// The burst collapses into one (or at most two, if a write lands
	// right after a timer fires) runs.
	time.Sleep(2 * debounceDelay)
	assert.LessOrEqual(t, m.callCount(), 2)
}
