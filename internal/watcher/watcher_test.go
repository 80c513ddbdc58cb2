package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestEventTypeFromOp(t *testing.T) {
	assert.Equal(t, EventTypeCreated, eventType(fsnotify.Create))
	assert.Equal(t, EventTypeModified, eventType(fsnotify.Write))
	assert.Equal(t, EventTypeDeleted, eventType(fsnotify.Remove))
	assert.Equal(t, EventTypeRenamed, eventType(fsnotify.Rename))
	assert.Equal(t, EventTypeModified, eventType(fsnotify.Chmod))
}

func TestFilters(t *testing.T) {
	assert.True(t, StateFileFilter("acme/state.yaml"))
	assert.True(t, StateFileFilter("state.YML"))
	assert.True(t, StateFileFilter("state.json"))
	assert.False(t, StateFileFilter("pack.xml"))

	assert.True(t, NoEditorTempFilter("state.yaml"))
	assert.False(t, NoEditorTempFilter(".state.yaml.swp"))
	assert.False(t, NoEditorTempFilter("state.yaml~"))
	assert.False(t, NoEditorTempFilter(".#state.yaml"))
	assert.False(t, NoEditorTempFilter("state.yaml.bak"))

	only := OnlyFile("dir/state.yaml")
	assert.True(t, only("dir/./state.yaml"))
	assert.False(t, only("dir/other.yaml"))
}

func TestValidatePath(t *testing.T) {
	_, err := validatePath("/non/existent/path")
	assert.Error(t, err)

	p, err := validatePath("./state.yaml")
	require.NoError(t, err)
	assert.Equal(t, "state.yaml", p)
}

func TestDebouncerCoalescesByPath(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "b.yaml"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "a.yaml"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "b.yaml"})

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a.yaml", events[0].Path)
		assert.Equal(t, "b.yaml", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type, "the latest event wins")
	case <-time.After(2 * time.Second):
		t.Fatal("no debounced batch")
	}

	d.flush()
	assert.Empty(t, d.output, "nothing pending means nothing sent")
}

func TestDebouncerKeepsPendingWhenOutputFull(t *testing.T) {
	d := NewDebouncer(time.Hour)
	defer d.stop()
	for i := 0; i < cap(d.output); i++ {
		d.output <- nil
	}

	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "a.yaml"})
	d.flush()
	assert.Len(t, d.pending, 1)

	<-d.output
	d.flush()
	assert.Empty(t, d.pending)
}

func TestClassifySkipsUnchangedContent(t *testing.T) {
	dir := "test_temp_classify"
	require.NoError(t, os.MkdirAll(dir, 0o755))
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(target, []byte("a: 1\n"), 0o600))

	w, err := NewFileWatcher(time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.AddFile(target))

	_, keep := w.classify(fsnotify.Event{Name: target, Op: fsnotify.Write})
	assert.False(t, keep, "content matches the baseline")

	require.NoError(t, os.WriteFile(target, []byte("a: 2\n"), 0o600))
	change, keep := w.classify(fsnotify.Event{Name: target, Op: fsnotify.Write})
	require.True(t, keep)
	assert.Equal(t, EventTypeModified, change.Type)
	assert.Len(t, change.Digest, 64)
	assert.Equal(t, int64(5), change.Size)

	_, keep = w.classify(fsnotify.Event{Name: target, Op: fsnotify.Chmod})
	assert.False(t, keep, "a touch without edits is not reported")

	_, keep = w.classify(fsnotify.Event{Name: filepath.Join(dir, "other.yaml"), Op: fsnotify.Write})
	assert.False(t, keep, "other files are filtered out")

	require.NoError(t, os.Remove(target))
	change, keep = w.classify(fsnotify.Event{Name: target, Op: fsnotify.Remove})
	require.True(t, keep)
	assert.Equal(t, EventTypeDeleted, change.Type)
	assert.Empty(t, change.Digest)

	require.NoError(t, os.WriteFile(target, []byte("a: 2\n"), 0o600))
	change, keep = w.classify(fsnotify.Event{Name: target, Op: fsnotify.Create})
	require.True(t, keep, "a recreated file is reported even with old content")
	assert.Equal(t, EventTypeCreated, change.Type)
}

func TestFileWatcherSeesStateFileChanges(t *testing.T) {
	dir := "test_temp_watch"
	require.NoError(t, os.MkdirAll(dir, 0o755))
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(target, []byte("basic: {}\n"), 0o600))

	w, err := NewFileWatcher(30*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	w.AddFilter(NoEditorTempFilter)
	require.NoError(t, w.AddFile(target))

	var (
		mu      sync.Mutex
		batches [][]ChangeEvent
	)
	w.AddHandler(func(_ context.Context, events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, events)

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(target, []byte("basic: {companyId: ACME}\n"), 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(batches) > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, batch := range batches {
		for _, e := range batch {
			assert.Equal(t, filepath.Clean(target), filepath.Clean(e.Path))
		}
	}
}
