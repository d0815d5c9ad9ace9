package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/loog-project/cattree/pkg/tree"
)

var ErrAlreadyTerminated = errors.New("tree mux terminated")

// Event is emitted whenever a watched tree file was written or replaced.
// Err is set if the file could not be loaded; editors often write in
// several steps, so a later event usually carries the complete tree.
type Event struct {
	ObjectID string
	Path     string
	Tree     *tree.Node
	Err      error
}

// TreeMux multiplexes change events of a set of tree files that can be
// added or removed at runtime. Directories are watched instead of the files
// themselves, so files replaced by rename are still picked up.
type TreeMux struct {
	ctx       context.Context
	cancel    context.CancelFunc
	watcher   *fsnotify.Watcher
	eventChan chan Event

	mutex      sync.RWMutex
	files      map[string]string // path -> object ID
	dirs       map[string]int
	terminated bool
}

// New creates an empty TreeMux and starts no watches yet.
func New(parent context.Context) (*TreeMux, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(parent)
	m := &TreeMux{
		ctx:       ctx,
		cancel:    cancel,
		watcher:   w,
		eventChan: make(chan Event, 1_024),
		files:     make(map[string]string),
		dirs:      make(map[string]int),
	}
	go m.run()
	return m, nil
}

// ResultChan returns the multiplexed event channel. It is closed after Stop.
func (m *TreeMux) ResultChan() <-chan Event {
	return m.eventChan
}

// Stop terminates the watches. Calling it more than once is a no-op.
func (m *TreeMux) Stop() {
	m.mutex.Lock()
	if m.terminated {
		m.mutex.Unlock()
		return
	}
	m.terminated = true
	m.mutex.Unlock()

	m.cancel()
	_ = m.watcher.Close()
}

// Add starts watching path as objectID if it is not already watched.
func (m *TreeMux) Add(objectID, path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.terminated {
		return ErrAlreadyTerminated
	}
	if _, exists := m.files[path]; exists {
		return nil // already watching
	}

	dir := filepath.Dir(path)
	if m.dirs[dir] == 0 {
		if err := m.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	m.dirs[dir]++
	m.files[path] = objectID
	return nil
}

// Remove stops and forgets the watch for path.
func (m *TreeMux) Remove(path string) {
	path, err := filepath.Abs(path)
	if err != nil {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.files[path]; !exists {
		return
	}
	delete(m.files, path)

	dir := filepath.Dir(path)
	if m.dirs[dir]--; m.dirs[dir] <= 0 {
		delete(m.dirs, dir)
		if !m.terminated {
			_ = m.watcher.Remove(dir)
		}
	}
}

// GetWatchedFiles returns the watched paths, sorted.
func (m *TreeMux) GetWatchedFiles() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	paths := make([]string, 0, len(m.files))
	for path := range m.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (m *TreeMux) run() {
	defer close(m.eventChan)
	for {
		select {
		case <-m.ctx.Done():
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			m.mutex.RLock()
			objectID, watched := m.files[filepath.Clean(ev.Name)]
			m.mutex.RUnlock()
			if !watched {
				continue
			}
			m.emit(objectID, ev.Name)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.send(Event{Err: err})
		}
	}
}

func (m *TreeMux) emit(objectID, path string) {
	n, err := tree.LoadFile(path)
	m.send(Event{ObjectID: objectID, Path: path, Tree: n, Err: err})
}

func (m *TreeMux) send(ev Event) {
	select {
	case m.eventChan <- ev:
	case <-m.ctx.Done():
	}
}

// ObjectIDFromPath derives an object ID from a tree file name by stripping
// the directory and a .yaml or .yml extension.
func ObjectIDFromPath(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".yaml", ".yml"} {
		if s, ok := strings.CutSuffix(base, ext); ok {
			return s
		}
	}
	return base
}
