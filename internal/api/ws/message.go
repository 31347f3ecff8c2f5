package ws

import (
	"time"

	"github.com/mcpd/desktop/backend/internal/chat"
	"github.com/mcpd/desktop/backend/internal/domain/desktop"
	"github.com/mcpd/desktop/backend/internal/domain/window"
)

// Message types
const (
	TypeSnapshot = "snapshot"
	TypeWindow   = "window"
	TypeChat     = "chat"
	TypeComplete = "complete"
	TypePing     = "ping"
	TypePong     = "pong"
	TypeError    = "error"
)

// Message is sent from server to client
type Message struct {
	Type      string            `json:"type"`
	Event     string            `json:"event,omitempty"`
	Window    *window.Window    `json:"window,omitempty"`
	Chat      *chat.Change      `json:"chat,omitempty"`
	Snapshot  *desktop.Snapshot `json:"snapshot,omitempty"`
	Outcome   string            `json:"outcome,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// ClientMessage is sent from client to server
type ClientMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

func newMessage(typ string) Message {
	return Message{Type: typ, Timestamp: time.Now().Unix()}
}

func windowMessage(ev window.Event) Message {
	m := newMessage(TypeWindow)
	w := ev.Window
	m.Event = string(ev.Kind)
	m.Window = &w
	return m
}

func chatMessage(ch chat.Change) Message {
	m := newMessage(TypeChat)
	m.Event = string(ch.Kind)
	m.Chat = &ch
	return m
}

func snapshotMessage(d *desktop.Desktop) Message {
	m := newMessage(TypeSnapshot)
	snap := d.Snapshot()
	m.Snapshot = &snap
	return m
}

func errorMessage(text string) Message {
	m := newMessage(TypeError)
	m.Message = text
	return m
}
