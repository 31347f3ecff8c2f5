package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mcpd/desktop/backend/internal/auth"
	"github.com/mcpd/desktop/backend/internal/chat"
	"github.com/mcpd/desktop/backend/internal/domain/desktop"
	"github.com/mcpd/desktop/backend/internal/domain/window"
	"github.com/mcpd/desktop/backend/internal/infrastructure/monitoring"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 256
)

// Config tunes the handler
type Config struct {
	// CheckOrigin decides whether an upgrade from another origin is accepted.
	// nil accepts every origin.
	CheckOrigin func(r *http.Request) bool
}

// Handler manages WebSocket connections
type Handler struct {
	desktops *desktop.Registry
	resolver auth.Resolver
	metrics  *monitoring.Metrics
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. metrics may be nil.
func NewHandler(desktops *desktop.Registry, resolver auth.Resolver, metrics *monitoring.Metrics, log *zap.Logger, cfg Config) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		desktops: desktops,
		resolver: resolver,
		metrics:  metrics,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// HandleConnection authenticates, upgrades and serves one connection
func (h *Handler) HandleConnection(c *gin.Context) {
	ident, err := h.resolver.Resolve(c.Request.Context(), auth.TokenFromRequest(c.Request))
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	d, detach := h.desktops.Attach(ident.UserID)
	defer detach()

	s := &session{
		conn:    conn,
		desktop: d,
		ident:   ident,
		out:     make(chan Message, sendBuffer),
		metrics: h.metrics,
		log:     h.log.With(zap.String("user_id", ident.UserID)),
	}
	s.run()
}

// session is one live connection. Only writeLoop writes to conn.
type session struct {
	conn    *websocket.Conn
	desktop *desktop.Desktop
	ident   auth.Identity
	out     chan Message
	metrics *monitoring.Metrics
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	chats  sync.WaitGroup
}

func (s *session) run() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	defer s.cancel()

	unsubWindows := s.desktop.Windows.Subscribe(func(ev window.Event) {
		s.enqueue(windowMessage(ev))
	})
	defer unsubWindows()
	unsubChat := s.desktop.Conversation().Subscribe(func(ch chat.Change) {
		s.enqueue(chatMessage(ch))
	})
	defer unsubChat()

	s.enqueue(snapshotMessage(s.desktop))

	// Signing out drops the desktop; the connection goes with it
	go func() {
		select {
		case <-s.desktop.Released():
			s.log.Debug("desktop released, closing websocket")
			s.cancel()
		case <-s.ctx.Done():
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop()
	}()

	s.log.Debug("websocket connected")
	s.readLoop()
	s.cancel()
	s.chats.Wait()
	<-writerDone
	s.log.Debug("websocket disconnected")
}

// enqueue never blocks; a client that cannot keep up is disconnected
func (s *session) enqueue(m Message) {
	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.out <- m:
	default:
		s.log.Warn("websocket client too slow, closing")
		s.cancel()
	}
}

func (s *session) readLoop() {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg ClientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			s.enqueue(errorMessage("invalid message"))
			continue
		}
		switch msg.Type {
		case TypePing:
			s.record("in", msg.Type)
			s.enqueue(newMessage(TypePong))
		case TypeSnapshot:
			s.record("in", msg.Type)
			s.enqueue(snapshotMessage(s.desktop))
		case TypeChat:
			s.record("in", msg.Type)
			s.chats.Add(1)
			go s.handleChat(msg.Message)
		default:
			s.record("in", "unknown")
			s.enqueue(errorMessage("unknown message type"))
		}
	}
}

func (s *session) handleChat(text string) {
	defer s.chats.Done()

	outcome, err := s.desktop.Assistant.Send(s.ctx, s.ident.Token, text)
	if err != nil {
		if s.ctx.Err() == nil {
			s.enqueue(errorMessage(err.Error()))
		}
		return
	}
	m := newMessage(TypeComplete)
	m.Outcome = string(outcome)
	s.enqueue(m)
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case m := <-s.out:
			data, err := sonic.Marshal(m)
			if err != nil {
				s.log.Error("websocket encode failed", zap.Error(err))
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.cancel()
				return
			}
			s.record("out", m.Type)
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.cancel()
				return
			}
		}
	}
}

func (s *session) record(direction, msgType string) {
	if s.metrics != nil {
		s.metrics.RecordWSMessage(direction, msgType)
	}
}
