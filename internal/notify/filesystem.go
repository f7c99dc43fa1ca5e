package notify

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"hostconfd/pkg/logging"
)

// FilesystemSource publishes a source when one of its watched files is
// edited by another tool. Rapid successive events for the same source are
// debounced into one notification.
//
// Files are watched through their parent directory, since editors and
// shadow-utils replace files by rename and a watch on the old inode would
// go quiet.
type FilesystemSource struct {
	mu sync.Mutex

	// files maps cleaned absolute file paths to the source they publish.
	files map[string]string

	debounce time.Duration
	watcher  *fsnotify.Watcher
	pending  map[string]*time.Timer
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// NewFilesystemSource creates a source with no watched files.
func NewFilesystemSource(debounce time.Duration) *FilesystemSource {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &FilesystemSource{
		files:    make(map[string]string),
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
	}
}

func (s *FilesystemSource) Name() string { return "filesystem" }

// Watch publishes source whenever path changes. It must be called before
// Start.
func (s *FilesystemSource) Watch(path, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[filepath.Clean(path)] = source
}

// Start begins watching the parent directories of all registered files.
func (s *FilesystemSource) Start(ctx context.Context, pub Publisher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || len(s.files) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dirs := make(map[string]bool)
	for path := range s.files {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		logging.Debug("FilesystemSource", "Watching directory: %s", dir)
	}

	s.watcher = watcher
	s.stopCh = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.processEvents(ctx, watcher, s.stopCh, pub)

	logging.Info("FilesystemSource", "Started watching %d files", len(s.files))
	return nil
}

func (s *FilesystemSource) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh <-chan struct{}, pub Publisher) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			s.cancelPending()
			return
		case <-stopCh:
			s.cancelPending()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event, pub)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("FilesystemSource", err, "Filesystem watcher error")
		}
	}
}

func (s *FilesystemSource) handleEvent(event fsnotify.Event, pub Publisher) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	source, ok := s.files[filepath.Clean(event.Name)]
	if !ok {
		return
	}

	if timer, ok := s.pending[source]; ok {
		timer.Stop()
	}
	s.pending[source] = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		delete(s.pending, source)
		s.mu.Unlock()

		count := pub.Publish(source)
		logging.Debug("FilesystemSource", "%s changed, notified %d subscribers", source, count)
	})
}

func (s *FilesystemSource) cancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, timer := range s.pending {
		timer.Stop()
	}
	s.pending = make(map[string]*time.Timer)
}

// Stop closes the watcher and drops pending notifications.
func (s *FilesystemSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	s.wg.Wait()
	if err := watcher.Close(); err != nil {
		logging.Error("FilesystemSource", err, "Error closing filesystem watcher")
		return err
	}
	logging.Info("FilesystemSource", "Stopped filesystem source")
	return nil
}
