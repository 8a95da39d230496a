package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/crfleet/pkg/engine"
)

type recorder struct {
	mu         sync.Mutex
	capacities []int
}

func (r *recorder) apply(_ context.Context, model *engine.ResourceModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capacities = append(r.capacities, *model.TotalTargetCapacity)
	return nil
}

func (r *recorder) seen() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.capacities...)
}

func writeModel(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func startWatcher(t *testing.T, path string, rec *recorder) *ModelWatcher {
	t.Helper()

	w, err := NewModelWatcher(zerolog.Nop(), path, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, rec.apply))
	t.Cleanup(func() {
		cancel()
		<-w.Done()
	})
	return w
}

func TestModelWatcher_AppliesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	writeModel(t, path, "total_target_capacity: 1\n")

	rec := &recorder{}
	startWatcher(t, path, rec)

	writeModel(t, path, "total_target_capacity: 3\n")

	require.Eventually(t, func() bool {
		seen := rec.seen()
		return len(seen) > 0 && seen[len(seen)-1] == 3
	}, 5*time.Second, 10*time.Millisecond)
}

func TestModelWatcher_SkipsInvalidRevisions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	writeModel(t, path, "total_target_capacity: 1\n")

	rec := &recorder{}
	startWatcher(t, path, rec)

	writeModel(t, path, "total_target_capacity: [\n")
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, rec.seen())

	writeModel(t, path, "total_target_capacity: 5\n")
	require.Eventually(t, func() bool {
		seen := rec.seen()
		return len(seen) == 1 && seen[0] == 5
	}, 5*time.Second, 10*time.Millisecond)
}

func TestModelWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleet.yaml")
	writeModel(t, path, "total_target_capacity: 1\n")

	rec := &recorder{}
	startWatcher(t, path, rec)

	writeModel(t, filepath.Join(dir, "other.yaml"), "total_target_capacity: 9\n")
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, rec.seen())
}

func TestModelWatcher_StopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	writeModel(t, path, "total_target_capacity: 1\n")

	w, err := NewModelWatcher(zerolog.Nop(), path, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, (&recorder{}).apply))
	cancel()

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestModelWatcher_MissingDirectory(t *testing.T) {
	w, err := NewModelWatcher(zerolog.Nop(), filepath.Join(t.TempDir(), "missing", "fleet.yaml"), 0)
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background(), (&recorder{}).apply))
}

func TestModelWatcher_StopWaitsForLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	writeModel(t, path, "total_target_capacity: 1\n")

	w, err := NewModelWatcher(zerolog.Nop(), path, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), (&recorder{}).apply))

	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop() }()

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	select {
	case <-w.Done():
	default:
		t.Fatal("event loop still running after Stop returned")
	}
}

func TestModelWatcher_StopBeforeStart(t *testing.T) {
	w, err := NewModelWatcher(zerolog.Nop(), filepath.Join(t.TempDir(), "fleet.yaml"), 0)
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
}
