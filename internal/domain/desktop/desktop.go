package desktop

import (
	"sync"
	"time"

	"github.com/mcpd/desktop/backend/internal/chat"
	"github.com/mcpd/desktop/backend/internal/domain/window"
)

// Desktop is the state of one user's session
type Desktop struct {
	UserID    string
	Windows   *window.Manager
	Assistant *chat.Assistant
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	attached int
	cancels  []func()
	released chan struct{}
	once     sync.Once
}

// Conversation returns the assistant conversation
func (d *Desktop) Conversation() *chat.Conversation {
	return d.Assistant.Conversation()
}

// LastSeen returns when the desktop was last used
func (d *Desktop) LastSeen() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSeen
}

// Attached reports whether a live connection holds the desktop
func (d *Desktop) Attached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attached > 0
}

// Released is closed once the desktop has been removed from its registry
func (d *Desktop) Released() <-chan struct{} {
	return d.released
}

// Snapshot is the serialisable state of a desktop
type Snapshot struct {
	UserID   string          `json:"user_id"`
	Windows  []window.Window `json:"windows"`
	Stats    window.Stats    `json:"stats"`
	Messages []chat.Message  `json:"messages"`
	Busy     bool            `json:"busy"`
}

// Snapshot captures windows and conversation
func (d *Desktop) Snapshot() Snapshot {
	return Snapshot{
		UserID:   d.UserID,
		Windows:  d.Windows.Windows(),
		Stats:    d.Windows.Stats(),
		Messages: d.Conversation().Messages(),
		Busy:     d.Assistant.Busy(),
	}
}

func (d *Desktop) touch(now time.Time) {
	d.mu.Lock()
	d.lastSeen = now
	d.mu.Unlock()
}

func (d *Desktop) attach(now time.Time) {
	d.mu.Lock()
	d.attached++
	d.lastSeen = now
	d.mu.Unlock()
}

func (d *Desktop) detach(now time.Time) {
	d.mu.Lock()
	d.attached--
	d.lastSeen = now
	d.mu.Unlock()
}

func (d *Desktop) onRelease(cancel func()) {
	d.mu.Lock()
	d.cancels = append(d.cancels, cancel)
	d.mu.Unlock()
}

// release aborts any streaming reply, closes every window, clears the
// conversation and detaches listeners. Later calls do nothing.
func (d *Desktop) release() {
	d.once.Do(func() {
		d.Assistant.Close()
		d.Windows.CloseAll()

		d.mu.Lock()
		cancels := d.cancels
		d.cancels = nil
		d.mu.Unlock()
		for _, cancel := range cancels {
			cancel()
		}
		close(d.released)
	})
}
