package navigation

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Action is what the restorer decided to do on a route change
type Action int

const (
	ActionScrollTop Action = iota
	ActionRestore
)

func (a Action) String() string {
	switch a {
	case ActionScrollTop:
		return "scroll-top"
	case ActionRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Decision is the outcome of a route change
type Decision struct {
	Action  Action
	ScrollX int
	ScrollY int
	State   []byte
}

// Scroller applies a scroll offset to the view
type Scroller interface {
	ScrollTo(x, y int)
}

// ScrollerFunc adapts a function to Scroller
type ScrollerFunc func(x, y int)

func (f ScrollerFunc) ScrollTo(x, y int) { f(x, y) }

// Scheduler runs fn on the next frame
type Scheduler func(fn func())

// Immediate runs fn synchronously
func Immediate(fn func()) { fn() }

// Restorer decides between scrolling to the top and restoring a saved
// offset every time the route path changes
type Restorer struct {
	stores   []*Store
	scroller Scroller
	schedule Scheduler
	log      *zap.Logger

	mu      sync.Mutex
	visited bool
}

// RestorerOption configures a Restorer
type RestorerOption func(*Restorer)

// WithScheduler sets how restores are deferred to the next frame
// Default: Immediate
func WithScheduler(s Scheduler) RestorerOption {
	return func(r *Restorer) {
		if s != nil {
			r.schedule = s
		}
	}
}

// WithFallback adds a store consulted when the primary store has no valid
// snapshot for a path
func WithFallback(store *Store) RestorerOption {
	return func(r *Restorer) {
		if store != nil {
			r.stores = append(r.stores, store)
		}
	}
}

// WithRestorerLogger sets the logger
func WithRestorerLogger(l *zap.Logger) RestorerOption {
	return func(r *Restorer) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRestorer creates a restorer reading snapshots from store
func NewRestorer(store *Store, scroller Scroller, opts ...RestorerOption) *Restorer {
	r := &Restorer{
		stores:   []*Store{store},
		scroller: scroller,
		schedule: Immediate,
		log:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// OnRouteChange scrolls to the top on the first visit or when path has no
// valid snapshot, and otherwise restores the saved offset on the next frame
func (r *Restorer) OnRouteChange(path string) Decision {
	r.mu.Lock()
	first := !r.visited
	r.visited = true
	r.mu.Unlock()

	if !first {
		if snap, ok := r.load(path); ok {
			x, y := snap.ScrollX, snap.ScrollY
			r.schedule(func() {
				r.scroller.ScrollTo(x, y)
			})
			r.log.Debug("restoring scroll position",
				zap.String("path", path),
				zap.Int("x", x),
				zap.Int("y", y),
			)
			return Decision{Action: ActionRestore, ScrollX: x, ScrollY: y, State: snap.State}
		}
	}

	r.scroller.ScrollTo(0, 0)
	return Decision{Action: ActionScrollTop}
}

func (r *Restorer) load(path string) (Snapshot, bool) {
	for _, s := range r.stores {
		if snap, ok := s.Load(path); ok {
			return snap, true
		}
	}
	return Snapshot{}, false
}

// Reset forgets that the app has been visited
func (r *Restorer) Reset() {
	r.mu.Lock()
	r.visited = false
	r.mu.Unlock()
}

// Recorder writes scroll positions to a store, debouncing bursts of scroll
// events per path
type Recorder struct {
	store    *Store
	state    *Store
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithStateStore sends Flush writes, which carry component state, to a
// separate store
// Default: the scroll store
func WithStateStore(store *Store) RecorderOption {
	return func(r *Recorder) {
		if store != nil {
			r.state = store
		}
	}
}

// NewRecorder creates a recorder writing scroll offsets to store. A
// non-positive debounce uses 100ms.
func NewRecorder(store *Store, debounce time.Duration, opts ...RecorderOption) *Recorder {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	r := &Recorder{
		store:    store,
		state:    store,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record schedules a write of the offset once path has been quiet for the
// debounce interval
func (r *Recorder) Record(path string, x, y int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if t, ok := r.pending[path]; ok {
		t.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(r.debounce, func() {
		r.mu.Lock()
		if r.pending[path] != t {
			r.mu.Unlock()
			return
		}
		delete(r.pending, path)
		r.mu.Unlock()

		r.store.Save(Snapshot{Path: path, ScrollX: x, ScrollY: y})
	})
	r.pending[path] = t
}

// Flush writes a snapshot immediately, cancelling any pending write for
// the same path. It is called when a route unmounts.
func (r *Recorder) Flush(path string, x, y int, state []byte) {
	r.mu.Lock()
	if t, ok := r.pending[path]; ok {
		t.Stop()
		delete(r.pending, path)
	}
	r.mu.Unlock()

	r.state.Save(Snapshot{Path: path, ScrollX: x, ScrollY: y, State: state})
}

// Close cancels every pending write
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for path, t := range r.pending {
		t.Stop()
		delete(r.pending, path)
	}
}
