package desktop

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mcpd/desktop/backend/internal/chat"
	"github.com/mcpd/desktop/backend/internal/domain/window"
	"github.com/mcpd/desktop/backend/internal/infrastructure/monitoring"
)

// Registry owns the desktops of all users
type Registry struct {
	layout   window.Layout
	streamer chat.Streamer
	metrics  *monitoring.Metrics
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	desktops map[string]*Desktop
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(layout window.Layout, streamer chat.Streamer, metrics *monitoring.Metrics, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		layout:   layout,
		streamer: streamer,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
		desktops: make(map[string]*Desktop),
	}
}

// Get returns the desktop of userID, creating it on first use
func (r *Registry) Get(userID string) *Desktop {
	return r.get(userID, false)
}

// Attach returns the desktop of userID, creating it on first use, and pins it
// against Sweep until detach is called. detach is idempotent.
func (r *Registry) Attach(userID string) (d *Desktop, detach func()) {
	d = r.get(userID, true)
	var once sync.Once
	return d, func() {
		once.Do(func() { d.detach(r.now()) })
	}
}

func (r *Registry) get(userID string, pin bool) *Desktop {
	now := r.now()

	r.mu.Lock()
	d, ok := r.desktops[userID]
	if !ok {
		d = r.create(userID, now)
		r.desktops[userID] = d
	}
	if pin {
		d.attach(now)
	} else {
		d.touch(now)
	}
	count := len(r.desktops)
	r.mu.Unlock()

	if !ok {
		r.log.Info("desktop created", zap.String("user_id", userID))
		if r.metrics != nil {
			r.metrics.SetDesktops(count)
		}
	}
	return d
}

// Lookup returns an existing desktop without creating one
func (r *Registry) Lookup(userID string) (*Desktop, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.desktops[userID]
	return d, ok
}

// Remove discards the desktop of userID. It reports whether one existed.
func (r *Registry) Remove(userID string) bool {
	r.mu.Lock()
	d, ok := r.desktops[userID]
	delete(r.desktops, userID)
	count := len(r.desktops)
	r.mu.Unlock()

	if !ok {
		return false
	}
	d.release()
	if r.metrics != nil {
		r.metrics.SetDesktops(count)
	}
	r.log.Info("desktop removed", zap.String("user_id", userID))
	return true
}

// Sweep removes desktops idle for longer than maxIdle that have no attached
// connection and no streaming reply, and returns how many were removed
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var idle []*Desktop
	for userID, d := range r.desktops {
		if d.LastSeen().Before(cutoff) && !d.Attached() && !d.Assistant.Busy() {
			idle = append(idle, d)
			delete(r.desktops, userID)
		}
	}
	count := len(r.desktops)
	r.mu.Unlock()

	if len(idle) == 0 {
		return 0
	}
	for _, d := range idle {
		d.release()
		r.log.Info("desktop removed", zap.String("user_id", d.UserID), zap.String("reason", "idle"))
	}
	if r.metrics != nil {
		r.metrics.SetDesktops(count)
	}
	r.log.Debug("idle desktops swept", zap.Int("removed", len(idle)))
	return len(idle)
}

// Count returns the number of live desktops
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.desktops)
}

// Users returns the ids of all live desktops, sorted
func (r *Registry) Users() []string {
	r.mu.Lock()
	users := make([]string, 0, len(r.desktops))
	for userID := range r.desktops {
		users = append(users, userID)
	}
	r.mu.Unlock()
	sort.Strings(users)
	return users
}

// create must be called with mu held
func (r *Registry) create(userID string, now time.Time) *Desktop {
	conv := chat.NewConversation()
	d := &Desktop{
		UserID:    userID,
		Windows:   window.NewManager(r.layout),
		Assistant: chat.NewAssistant(conv, r.streamer, r.metrics, r.log.With(zap.String("user_id", userID))),
		CreatedAt: now,
		lastSeen:  now,
		released:  make(chan struct{}),
	}
	if r.metrics != nil {
		d.onRelease(d.Windows.Subscribe(r.recordWindowEvent))
	}
	return d
}

func (r *Registry) recordWindowEvent(ev window.Event) {
	r.metrics.RecordWindowOp(string(ev.Kind))
	switch ev.Kind {
	case window.EventOpened:
		r.metrics.AddWindows(1)
	case window.EventClosed:
		r.metrics.AddWindows(-1)
	}
}
