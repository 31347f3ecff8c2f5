package window

// Descriptor is the request to open an application in a window.
type Descriptor struct {
	AppID     string `json:"app_id"`
	Title     string `json:"title"`
	Component string `json:"component,omitempty"`
}

// Window is one entry of the registry. X/Y/Width/Height are kept while the
// window is maximized so that restore returns it to its previous frame.
type Window struct {
	ID        string `json:"id"`
	AppID     string `json:"app_id"`
	Title     string `json:"title"`
	Component string `json:"component,omitempty"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Minimized bool   `json:"minimized"`
	Maximized bool   `json:"maximized"`
	ZIndex    int    `json:"z_index"`
}

// Layout controls where new windows appear.
type Layout struct {
	BaseX        int
	BaseY        int
	CascadeStep  int
	CascadeSlots int
	Width        int
	Height       int
}

// DefaultLayout cascades windows 30px apart over 8 slots starting at (100, 60).
func DefaultLayout() Layout {
	return Layout{
		BaseX:        100,
		BaseY:        60,
		CascadeStep:  30,
		CascadeSlots: 8,
		Width:        800,
		Height:       550,
	}
}

// EventKind names a registry mutation
type EventKind string

const (
	EventOpened    EventKind = "opened"
	EventFocused   EventKind = "focused"
	EventRestored  EventKind = "restored"
	EventMinimized EventKind = "minimized"
	EventMaximized EventKind = "maximized"
	EventMoved     EventKind = "moved"
	EventResized   EventKind = "resized"
	EventClosed    EventKind = "closed"
)

// Event describes a mutation. Window holds the state after the mutation
// (for EventClosed, the state at removal).
type Event struct {
	Kind   EventKind `json:"kind"`
	Window Window    `json:"window"`
}

// Stats contains registry statistics
type Stats struct {
	Total      int    `json:"total"`
	Visible    int    `json:"visible"`
	Minimized  int    `json:"minimized"`
	Maximized  int    `json:"maximized"`
	NextZIndex int    `json:"next_z_index"`
	FocusedID  string `json:"focused_id,omitempty"`
}
