package assets

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/prism/engine/core"
)

// Kind classifies a file by extension.
type Kind int

const (
	KindNone Kind = iota
	KindShaderSource
	KindShaderBinary
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindShaderSource:
		return "shader-source"
	case KindShaderBinary:
		return "shader-binary"
	case KindImage:
		return "image"
	default:
		return "none"
	}
}

func kindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vert", ".frag":
		return KindShaderSource
	case ".spv":
		return KindShaderBinary
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return KindImage
	default:
		return KindNone
	}
}

type Op int

const (
	OpCreated Op = iota
	OpModified
	OpRemoved
)

type Asset struct {
	Path     string
	Kind     Kind
	Modified time.Time
}

// Event reports a change to a known asset.
type Event struct {
	Asset
	Op Op
}

var errClosed = errors.New("assets: manager closed")

// Manager indexes the asset directory and keeps watching it. Changes are
// published on Events; the channel is buffered and drops when full so a
// slow consumer never stalls the watcher.
type Manager struct {
	logger *log.Logger
	root   string

	mu     sync.RWMutex
	assets map[string]Asset
	closed bool

	watcher *fsnotify.Watcher
	events  chan Event
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewManager(logger *log.Logger, dir string) (*Manager, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	m := &Manager{
		logger:  core.OrDiscard(logger).WithPrefix("assets"),
		root:    dir,
		assets:  make(map[string]Asset),
		watcher: w,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
	if err := m.watchRecursive(dir); err != nil {
		w.Close()
		return nil, err
	}
	m.wg.Add(1)
	go m.run()
	m.logger.Debug("watching assets", "dir", dir, "count", len(m.assets))
	return m, nil
}

func (m *Manager) Events() <-chan Event { return m.events }

func (m *Manager) Root() string { return m.root }

// Lookup returns the indexed asset at path.
func (m *Manager) Lookup(path string) (Asset, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[filepath.Clean(path)]
	return a, ok
}

// List returns the known assets of kind, sorted by path.
func (m *Manager) List(kind Kind) []Asset {
	m.mu.RLock()
	var out []Asset
	for _, a := range m.assets {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b Asset) int { return strings.Compare(a.Path, b.Path) })
	return out
}

func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errClosed
	}
	m.closed = true
	m.mu.Unlock()
	close(m.done)
	m.wg.Wait()
	return m.watcher.Close()
}

func (m *Manager) run() {
	defer m.wg.Done()
	defer close(m.events)
	for {
		select {
		case e, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handle(e)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("watcher failed", "err", err)
		case <-m.done:
			return
		}
	}
}

func (m *Manager) handle(e fsnotify.Event) {
	if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		fi, err := os.Stat(e.Name)
		if err != nil {
			return
		}
		if fi.IsDir() {
			// New directories are walked so files created inside them
			// before the watch was added are not missed.
			if e.Op&fsnotify.Create != 0 {
				if err := m.watchRecursive(e.Name); err != nil {
					m.logger.Warn("cannot watch directory", "dir", e.Name, "err", err)
				}
			}
			return
		}
		op := OpModified
		if e.Op&fsnotify.Create != 0 {
			op = OpCreated
		}
		if a, ok := m.index(e.Name, fi.ModTime()); ok {
			m.publish(Event{Asset: a, Op: op})
		}
		return
	}
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		// A removed path can't be stat'ed, so it may have been a directory.
		_ = m.watcher.Remove(e.Name)
		if a, ok := m.unindex(e.Name); ok {
			m.publish(Event{Asset: a, Op: OpRemoved})
		}
	}
}

func (m *Manager) publish(e Event) {
	select {
	case m.events <- e:
	default:
		m.logger.Warn("asset event dropped", "path", e.Path)
	}
}

// watchRecursive adds dir and every sub-directory to the watch list and
// indexes the files found.
func (m *Manager) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return m.watcher.Add(path)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		m.index(path, info.ModTime())
		return nil
	})
}

func (m *Manager) index(path string, modified time.Time) (Asset, bool) {
	kind := kindOf(path)
	if kind == KindNone {
		return Asset{}, false
	}
	a := Asset{Path: filepath.Clean(path), Kind: kind, Modified: modified}
	m.mu.Lock()
	m.assets[a.Path] = a
	m.mu.Unlock()
	return a, true
}

func (m *Manager) unindex(path string) (Asset, bool) {
	path = filepath.Clean(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[path]
	if ok {
		delete(m.assets, path)
	}
	return a, ok
}
