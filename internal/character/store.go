package character

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/garyellow/lullabot-go/internal/logger"
)

const defaultDebounce = 250 * time.Millisecond

// Store holds the active character and, when backed by a file, reloads it
// on change. A file that fails to parse leaves the previous character in
// place.
type Store struct {
	path    string
	current atomic.Pointer[Character]
	logger  *logger.Logger

	debounce time.Duration
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewStore loads the character at path, or the embedded default when path
// is empty.
func NewStore(path string, log *logger.Logger) (*Store, error) {
	s := &Store{path: path, logger: log.WithModule("character"), debounce: defaultDebounce}
	if path == "" {
		s.current.Store(Default())
		return s, nil
	}

	c, err := load(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(c)
	return s, nil
}

// Current returns the active character.
func (s *Store) Current() *Character {
	return s.current.Load()
}

// Reload re-reads the backing file. Without a file it is a no-op.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	c, err := load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(c)
	s.logger.WithField("character", c.Name).Info("Character reloaded")
	return nil
}

// Watch reloads the character whenever its file changes, until ctx is
// done or Close is called. The parent directory is watched so editors that
// replace the file by rename are seen.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.watcher = watcher
	s.cancel = cancel

	s.wg.Add(1)
	go s.watchLoop(watchCtx, watcher)
	return nil
}

// Close stops watching and waits for the watch goroutine.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	var err error
	if watcher != nil {
		err = watcher.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer s.wg.Done()

	target := filepath.Clean(s.path)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target ||
				event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := s.Reload(); err != nil {
				s.logger.WithError(err).Warn("Character reload failed, keeping previous")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Warn("Character watch error")
		}
	}
}

func load(path string) (*Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read character file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
