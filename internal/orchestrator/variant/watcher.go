package variant

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/troupe-dev/troupe/internal/event"
	"github.com/troupe-dev/troupe/internal/logging"
)

// activityThrottle is the minimum gap between activity events per agent.
// Builds touch many files; one event per burst is enough for the feed.
const activityThrottle = 2 * time.Second

// debounceWindow collects rapid-fire filesystem events before reporting.
// Editors and toolchains emit several events per save.
const debounceWindow = 50 * time.Millisecond

// Watcher observes variant workspace directories and reports per-agent
// build activity as status events. Purely observational; it never blocks
// or alters the run.
type Watcher struct {
	watcher *fsnotify.Watcher
	bus     *event.Bus
	logger  *logging.Logger

	sessionID string

	mu       sync.Mutex
	agents   map[string]string // directory prefix -> agent ID
	names    map[string]string // agent ID -> display name
	lastSeen map[string]time.Time

	ignore []string
	stopCh chan struct{}
	once   sync.Once
}

// NewWatcher creates a workspace activity watcher for one session.
func NewWatcher(bus *event.Bus, logger *logging.Logger, sessionID string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Watcher{
		watcher:   fsw,
		bus:       bus,
		logger:    logger,
		sessionID: sessionID,
		agents:    make(map[string]string),
		names:     make(map[string]string),
		lastSeen:  make(map[string]time.Time),
		ignore:    []string{".git", "node_modules", ".DS_Store"},
		stopCh:    make(chan struct{}),
	}, nil
}

// WatchWorkspace registers every agent directory of a materialized
// workspace. Subdirectories created later are added as they appear.
func (w *Watcher) WatchWorkspace(ws *Workspace, agentNames map[string]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for agentID := range ws.Folders {
		dir := ws.Dir(agentID)
		w.agents[dir] = agentID
		if name, ok := agentNames[agentID]; ok {
			w.names[agentID] = name
		}
		if err := w.watchRecursive(dir); err != nil {
			return err
		}
	}
	return nil
}

// watchRecursive adds a directory tree to the watcher. Walk errors are
// skipped; a directory that vanished mid-walk is not worth failing over.
func (w *Watcher) watchRecursive(root string) error {
	if err := w.watcher.Add(root); err != nil {
		return err
	}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		for _, ig := range w.ignore {
			if filepath.Base(path) == ig {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if info.IsDir() {
			_ = w.watcher.Add(path)
		}
		return nil
	})
}

// Start begins the watch loop.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop ends the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	debounce := time.NewTimer(0)
	<-debounce.C

	pending := make(map[string]fsnotify.Event)

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending[ev.Name] = ev
			debounce.Reset(debounceWindow)

		case <-debounce.C:
			events := pending
			pending = make(map[string]fsnotify.Event)
			w.flush(events)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("workspace watcher error", "error", err)
		}
	}
}

// flush attributes a burst of events to agents and reports one throttled
// activity event per agent.
func (w *Watcher) flush(events map[string]fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	touched := make(map[string][]string)
	for path, ev := range events {
		if w.ignored(path) {
			continue
		}
		agentID, dir := w.owner(path)
		if agentID == "" {
			continue
		}
		// New subdirectories join the watch as they appear.
		if ev.Op&fsnotify.Create != 0 {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				_ = w.watcher.Add(path)
			}
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		touched[agentID] = append(touched[agentID], rel)
	}

	now := time.Now()
	for agentID, files := range touched {
		if now.Sub(w.lastSeen[agentID]) < activityThrottle {
			continue
		}
		w.lastSeen[agentID] = now
		sort.Strings(files)
		name := w.names[agentID]
		if name == "" {
			name = agentID
		}
		if w.bus != nil {
			w.bus.Publish(event.NewStatusEvent(w.sessionID, agentID, "activity",
				activityMessage(name, files)))
		}
	}
}

// owner maps an event path to the agent whose directory contains it.
func (w *Watcher) owner(path string) (agentID, dir string) {
	for d, id := range w.agents {
		if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
			return id, d
		}
	}
	return "", ""
}

func (w *Watcher) ignored(path string) bool {
	for _, ig := range w.ignore {
		if filepath.Base(path) == ig ||
			strings.Contains(path, string(filepath.Separator)+ig+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func activityMessage(name string, files []string) string {
	if len(files) == 1 {
		return name + " modified " + files[0]
	}
	return fmt.Sprintf("%s modified %s and %d other files", name, files[0], len(files)-1)
}
