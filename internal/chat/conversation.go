package chat

import (
	"sync"
	"time"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrorPrefix starts every synthetic failure message
const ErrorPrefix = "⚠ Error: "

// Message is one entry of the conversation
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChangeKind describes what happened to the conversation
type ChangeKind string

const (
	ChangeAppended ChangeKind = "appended"
	ChangeUpdated  ChangeKind = "updated"
	ChangeCleared  ChangeKind = "cleared"
)

// Change is delivered to subscribers after each mutation
type Change struct {
	Kind    ChangeKind `json:"kind"`
	Index   int        `json:"index"`
	Message Message    `json:"message"`
}

// Conversation is the ordered message list of one desktop. Messages are only
// ever appended, except for the assistant reply currently being streamed,
// which is replaced in place until Finish seals it.
type Conversation struct {
	mu         sync.Mutex
	messages   []Message
	inProgress bool // last message is an assistant reply still streaming
	now        func() time.Time

	subMu     sync.RWMutex
	listeners map[int]func(Change)
	nextSub   int
}

// NewConversation creates an empty conversation
func NewConversation() *Conversation {
	return &Conversation{
		now:       time.Now,
		listeners: make(map[int]func(Change)),
	}
}

// AppendUser seals any in-progress reply and appends a user message
func (c *Conversation) AppendUser(content string) Message {
	return c.append(RoleUser, content)
}

// Fail appends a synthetic assistant message describing reason
func (c *Conversation) Fail(reason string) Message {
	return c.append(RoleAssistant, ErrorPrefix+reason)
}

func (c *Conversation) append(role Role, content string) Message {
	c.mu.Lock()
	c.inProgress = false
	msg := Message{Role: role, Content: content, CreatedAt: c.now()}
	c.messages = append(c.messages, msg)
	idx := len(c.messages) - 1
	c.mu.Unlock()

	c.emit(Change{Kind: ChangeAppended, Index: idx, Message: msg})
	return msg
}

// ApplyDelta sets the in-progress assistant reply to text, the full reply
// accumulated so far. The first call of a reply appends it.
func (c *Conversation) ApplyDelta(text string) Message {
	c.mu.Lock()
	kind := ChangeUpdated
	if !c.inProgress {
		c.messages = append(c.messages, Message{Role: RoleAssistant, CreatedAt: c.now()})
		c.inProgress = true
		kind = ChangeAppended
	}
	idx := len(c.messages) - 1
	c.messages[idx].Content = text
	msg := c.messages[idx]
	c.mu.Unlock()

	c.emit(Change{Kind: kind, Index: idx, Message: msg})
	return msg
}

// Finish seals the in-progress reply. The next ApplyDelta starts a new one.
func (c *Conversation) Finish() {
	c.mu.Lock()
	c.inProgress = false
	c.mu.Unlock()
}

// InProgress reports whether an assistant reply is being streamed
func (c *Conversation) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inProgress
}

// Messages returns a copy of the conversation
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Clear drops every message
func (c *Conversation) Clear() {
	c.mu.Lock()
	c.messages = nil
	c.inProgress = false
	c.mu.Unlock()

	c.emit(Change{Kind: ChangeCleared, Index: -1})
}

// Subscribe registers fn for every change. Callbacks run after the lock is released.
func (c *Conversation) Subscribe(fn func(Change)) (cancel func()) {
	c.subMu.Lock()
	key := c.nextSub
	c.nextSub++
	c.listeners[key] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.listeners, key)
			c.subMu.Unlock()
		})
	}
}

func (c *Conversation) emit(ch Change) {
	c.subMu.RLock()
	listeners := make([]func(Change), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range listeners {
		fn(ch)
	}
}
