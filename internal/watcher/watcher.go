// Package watcher reports debounced changes to wizard state files.
//
// Events are narrowed by filters, coalesced per path over a quiet period
// and dropped when a file's content is byte-for-byte what was last
// reported, so editors that touch or re-save a file without edits do not
// cause a regeneration.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/mpwizard/internal/logging"
)

// EventType classifies a change.
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	}

	return "unknown"
}

// ChangeEvent is one reported change. Digest is the SHA-256 of the file
// content and is empty once the file is gone.
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
	Digest  string
}

// FileFilter reports whether events for path are of interest.
type FileFilter func(path string) bool

// ChangeHandler receives each coalesced batch.
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// FileWatcher delivers coalesced state file changes to its handlers.
type FileWatcher struct {
	fsw     *fsnotify.Watcher
	batch   *Debouncer
	logger  logging.Logger
	mu      sync.RWMutex
	filters []FileFilter
	onBatch []ChangeHandler

	// digests holds the last reported content digest per path
	digests map[string]string
}

// NewFileWatcher creates a watcher whose batches close after delay
// without events. A nil logger discards output.
func NewFileWatcher(delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &FileWatcher{
		fsw:     fsw,
		batch:   NewDebouncer(delay),
		logger:  logger.WithComponent("watcher"),
		digests: make(map[string]string),
	}, nil
}

// AddFilter adds a filter. An event is kept only when every filter accepts
// its path.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mu.Lock()
	fw.filters = append(fw.filters, filter)
	fw.mu.Unlock()
}

// AddHandler adds a batch handler.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mu.Lock()
	fw.onBatch = append(fw.onBatch, handler)
	fw.mu.Unlock()
}

// AddPath watches a directory under the working directory.
func (fw *FileWatcher) AddPath(path string) error {
	clean, err := validatePath(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	return fw.fsw.Add(clean)
}

// AddFile watches a single file. Its directory is watched and events are
// narrowed to the file, so editors that save by replacing the file are
// still seen. The current content becomes the baseline digest.
func (fw *FileWatcher) AddFile(path string) error {
	clean, err := validatePath(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	fw.AddFilter(OnlyFile(clean))
	if digest, _, err := fileDigest(clean); err == nil {
		fw.mu.Lock()
		fw.digests[clean] = digest
		fw.mu.Unlock()
	}

	return fw.fsw.Add(filepath.Dir(clean))
}

// Start runs the watcher until ctx is done.
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.batch.start(ctx)
	go fw.dispatch(ctx)
	go fw.receive(ctx)

	return nil
}

// Stop releases the underlying notifier.
func (fw *FileWatcher) Stop() error {
	fw.batch.stop()

	return fw.fsw.Close()
}

func (fw *FileWatcher) receive(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.fsw.Events:
			if !ok {
				return
			}
			if change, keep := fw.classify(ev); keep {
				if !fw.batch.offer(change) {
					fw.logger.Debug(ctx, "Dropped file event, queue full", "path", ev.Name)
				}
			}
		case err, ok := <-fw.fsw.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

// classify turns a notification into a change, or reports that it should
// be ignored because a filter rejects it or the content is unchanged.
func (fw *FileWatcher) classify(ev fsnotify.Event) (ChangeEvent, bool) {
	path := filepath.Clean(ev.Name)

	fw.mu.RLock()
	filters := fw.filters
	fw.mu.RUnlock()
	for _, accept := range filters {
		if !accept(path) {
			return ChangeEvent{}, false
		}
	}

	change := ChangeEvent{Type: eventType(ev.Op), Path: path}

	digest, info, err := fileDigest(path)
	if err != nil {
		// Gone (or unreadable): forget it so a recreated file is reported
		fw.mu.Lock()
		delete(fw.digests, path)
		fw.mu.Unlock()
		if change.Type != EventTypeDeleted && change.Type != EventTypeRenamed {
			change.Type = EventTypeDeleted
		}

		return change, true
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.digests[path] == digest {
		return ChangeEvent{}, false
	}
	fw.digests[path] = digest

	change.Digest = digest
	change.ModTime = info.ModTime()
	change.Size = info.Size()

	return change, true
}

func (fw *FileWatcher) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.batch.output:
			fw.mu.RLock()
			handlers := fw.onBatch
			fw.mu.RUnlock()

			for _, handle := range handlers {
				if err := handle(ctx, events); err != nil {
					fw.logger.Error(ctx, err, "State file handler failed", "events", len(events))
				}
			}
		}
	}
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventTypeCreated
	case op.Has(fsnotify.Write):
		return EventTypeModified
	case op.Has(fsnotify.Remove):
		return EventTypeDeleted
	case op.Has(fsnotify.Rename):
		return EventTypeRenamed
	}

	return EventTypeModified
}

func fileDigest(path string) (string, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, err
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("%s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:]), info, nil
}

// validatePath cleans path and rejects anything outside the working
// directory.
func validatePath(path string) (string, error) {
	clean := filepath.Clean(path)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("path contains directory traversal: %s", path)
	}

	abs, err := filepath.Abs(clean)
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if abs != cwd && !strings.HasPrefix(abs, cwd+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside current working directory", path)
	}

	return clean, nil
}

// Debouncer collects changes until delay passes without a new one, then
// emits them as one batch with one entry per path (the latest wins),
// sorted by path.
type Debouncer struct {
	delay  time.Duration
	input  chan ChangeEvent
	output chan []ChangeEvent

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]ChangeEvent
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		input:   make(chan ChangeEvent, 100),
		output:  make(chan []ChangeEvent, 10),
		pending: make(map[string]ChangeEvent),
	}
}

// offer queues a change without blocking. It reports false when the queue
// is full.
func (d *Debouncer) offer(change ChangeEvent) bool {
	select {
	case d.input <- change:
		return true
	default:
		return false
	}
}

func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.stop()

			return
		case change := <-d.input:
			d.addEvent(change)
		}
	}
}

func (d *Debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) addEvent(change ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[change.Path] = change
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 {
		return
	}

	batch := make([]ChangeEvent, 0, len(d.pending))
	for _, change := range d.pending {
		batch = append(batch, change)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	select {
	case d.output <- batch:
		clear(d.pending)
	default:
		// Output is full: keep pending for the next flush
	}
}

// StateFileFilter accepts YAML and JSON state files.
func StateFileFilter(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}

	return false
}

// NoEditorTempFilter rejects swap and backup files editors write next to
// the file being edited.
func NoEditorTempFilter(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".#") || strings.HasSuffix(base, "~") {
		return false
	}
	for _, pattern := range []string{".*.swp", ".*.swx", "*.bak", "*.tmp"} {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}

	return true
}

// OnlyFile accepts events for target only.
func OnlyFile(target string) FileFilter {
	want := filepath.Clean(target)

	return func(path string) bool {
		return filepath.Clean(path) == want
	}
}
