package window

import (
	"sort"
	"sync"

	"github.com/mcpd/desktop/backend/internal/shared/id"
)

// Listener receives registry events
type Listener func(Event)

// Manager is the window registry of one desktop
type Manager struct {
	mu      sync.Mutex
	windows []*Window // insertion order, protected by mu
	nextZ   int       // next z-index to hand out, protected by mu
	created int       // windows ever created, drives the cascade
	layout  Layout
	newID   func() string

	subMu     sync.RWMutex
	listeners map[int]Listener
	nextSub   int
}

// Option configures a Manager
type Option func(*Manager)

// WithIDFunc overrides window id generation
func WithIDFunc(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// NewManager creates an empty registry
func NewManager(layout Layout, opts ...Option) *Manager {
	if layout.CascadeSlots <= 0 {
		layout.CascadeSlots = DefaultLayout().CascadeSlots
	}
	if layout.Width <= 0 || layout.Height <= 0 {
		d := DefaultLayout()
		layout.Width, layout.Height = d.Width, d.Height
	}

	m := &Manager{
		nextZ:     1,
		layout:    layout,
		newID:     func() string { return id.NewWindowID().String() },
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers a listener called after every mutation. Listeners run
// on the mutating goroutine after the registry lock is released.
func (m *Manager) Subscribe(fn Listener) (cancel func()) {
	m.subMu.Lock()
	key := m.nextSub
	m.nextSub++
	m.listeners[key] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.listeners, key)
			m.subMu.Unlock()
		})
	}
}

func (m *Manager) emit(kind EventKind, w Window) {
	m.subMu.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.subMu.RUnlock()

	ev := Event{Kind: kind, Window: w}
	for _, fn := range listeners {
		fn(ev)
	}
}

// Open focuses, restores or creates the window hosting desc.AppID and
// returns its state. It always succeeds.
func (m *Manager) Open(desc Descriptor) Window {
	m.mu.Lock()

	if w := m.findApp(desc.AppID, false); w != nil {
		m.raise(w)
		w.Minimized = false
		snap := *w
		m.mu.Unlock()
		m.emit(EventFocused, snap)
		return snap
	}

	if w := m.findApp(desc.AppID, true); w != nil {
		m.raise(w)
		w.Minimized = false
		w.Maximized = false
		snap := *w
		m.mu.Unlock()
		m.emit(EventRestored, snap)
		return snap
	}

	m.created++
	offset := (m.created % m.layout.CascadeSlots) * m.layout.CascadeStep
	w := &Window{
		ID:        m.newID(),
		AppID:     desc.AppID,
		Title:     desc.Title,
		Component: desc.Component,
		X:         m.layout.BaseX + offset,
		Y:         m.layout.BaseY + offset,
		Width:     m.layout.Width,
		Height:    m.layout.Height,
	}
	m.raise(w)
	m.windows = append(m.windows, w)
	snap := *w
	m.mu.Unlock()

	m.emit(EventOpened, snap)
	return snap
}

// Close removes the window. It reports whether the id existed.
func (m *Manager) Close(windowID string) bool {
	m.mu.Lock()
	idx := m.indexOf(windowID)
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	snap := *m.windows[idx]
	m.windows = append(m.windows[:idx], m.windows[idx+1:]...)
	m.mu.Unlock()

	m.emit(EventClosed, snap)
	return true
}

// CloseAll empties the registry and returns the number of windows removed.
// The z-index counter keeps counting.
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	removed := m.windows
	m.windows = nil
	m.mu.Unlock()

	for _, w := range removed {
		m.emit(EventClosed, *w)
	}
	return len(removed)
}

// Minimize hides the window without touching its z-index
func (m *Manager) Minimize(windowID string) bool {
	return m.mutate(windowID, EventMinimized, func(w *Window) {
		w.Minimized = true
	})
}

// Maximize marks the window maximized and brings it to the front
func (m *Manager) Maximize(windowID string) bool {
	return m.mutate(windowID, EventMaximized, func(w *Window) {
		w.Maximized = true
		m.raise(w)
	})
}

// Restore clears minimized and maximized and brings the window to the front
func (m *Manager) Restore(windowID string) bool {
	return m.mutate(windowID, EventRestored, func(w *Window) {
		w.Maximized = false
		w.Minimized = false
		m.raise(w)
	})
}

// Focus un-minimizes the window and brings it to the front. Maximized is kept.
func (m *Manager) Focus(windowID string) bool {
	return m.mutate(windowID, EventFocused, func(w *Window) {
		w.Minimized = false
		m.raise(w)
	})
}

// Move stores a new top-left corner. No clamping is applied and the position
// is stored even while the window is maximized.
func (m *Manager) Move(windowID string, x, y int) bool {
	return m.mutate(windowID, EventMoved, func(w *Window) {
		w.X, w.Y = x, y
	})
}

// Resize stores a new size
func (m *Manager) Resize(windowID string, width, height int) bool {
	return m.mutate(windowID, EventResized, func(w *Window) {
		w.Width, w.Height = width, height
	})
}

// Toggle is the taskbar action: a minimized window is focused, any other
// window is minimized.
func (m *Manager) Toggle(windowID string) bool {
	return m.apply(windowID, func(w *Window) EventKind {
		if w.Minimized {
			w.Minimized = false
			m.raise(w)
			return EventFocused
		}
		w.Minimized = true
		return EventMinimized
	})
}

// ToggleMaximize is the title bar action: a maximized window is restored,
// any other window is maximized.
func (m *Manager) ToggleMaximize(windowID string) bool {
	return m.apply(windowID, func(w *Window) EventKind {
		if w.Maximized {
			w.Maximized = false
			w.Minimized = false
			m.raise(w)
			return EventRestored
		}
		w.Maximized = true
		m.raise(w)
		return EventMaximized
	})
}

func (m *Manager) mutate(windowID string, kind EventKind, fn func(*Window)) bool {
	return m.apply(windowID, func(w *Window) EventKind {
		fn(w)
		return kind
	})
}

func (m *Manager) apply(windowID string, fn func(*Window) EventKind) bool {
	m.mu.Lock()
	idx := m.indexOf(windowID)
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	w := m.windows[idx]
	kind := fn(w)
	snap := *w
	m.mu.Unlock()

	m.emit(kind, snap)
	return true
}

// Get returns a copy of the window
func (m *Manager) Get(windowID string) (Window, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(windowID)
	if idx < 0 {
		return Window{}, false
	}
	return *m.windows[idx], true
}

// Windows returns copies of all windows in opening order
func (m *Manager) Windows() []Window {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Window, len(m.windows))
	for i, w := range m.windows {
		out[i] = *w
	}
	return out
}

// Visible returns the non-minimized windows, bottom to top
func (m *Manager) Visible() []Window {
	m.mu.Lock()
	out := make([]Window, 0, len(m.windows))
	for _, w := range m.windows {
		if !w.Minimized {
			out = append(out, *w)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

// Top returns the visible window drawn above all others
func (m *Manager) Top() (Window, bool) {
	visible := m.Visible()
	if len(visible) == 0 {
		return Window{}, false
	}
	return visible[len(visible)-1], true
}

// Stats returns registry statistics
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	stats := Stats{Total: len(m.windows), NextZIndex: m.nextZ}
	top := 0
	for _, w := range m.windows {
		if w.Maximized {
			stats.Maximized++
		}
		if w.Minimized {
			stats.Minimized++
			continue
		}
		stats.Visible++
		if w.ZIndex > top {
			top = w.ZIndex
			stats.FocusedID = w.ID
		}
	}
	m.mu.Unlock()
	return stats
}

// raise assigns the next z-index (must hold mu)
func (m *Manager) raise(w *Window) {
	w.ZIndex = m.nextZ
	m.nextZ++
}

// findApp returns the first window of appID with the given minimized flag (must hold mu)
func (m *Manager) findApp(appID string, minimized bool) *Window {
	for _, w := range m.windows {
		if w.AppID == appID && w.Minimized == minimized {
			return w
		}
	}
	return nil
}

// indexOf must be called with mu held
func (m *Manager) indexOf(windowID string) int {
	for i, w := range m.windows {
		if w.ID == windowID {
			return i
		}
	}
	return -1
}
