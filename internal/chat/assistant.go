package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mcpd/desktop/backend/internal/chat/stream"
	"github.com/mcpd/desktop/backend/internal/infrastructure/monitoring"
	"github.com/mcpd/desktop/backend/internal/shared/utils"
)

var (
	// ErrEmptyMessage is returned for blank input. Nothing is appended.
	ErrEmptyMessage = errors.New("message cannot be empty")
	// ErrInvalidMessage is returned for input failing validation
	ErrInvalidMessage = errors.New("invalid message")
	// ErrBusy is returned while a previous reply is still streaming
	ErrBusy = errors.New("a reply is already being generated")
	// ErrClosed is returned by Send once the assistant has been closed
	ErrClosed = errors.New("assistant is closed")
)

// NotAuthenticatedReason is recorded when Send is called without a credential
const NotAuthenticatedReason = "Not authenticated"

// Outcome labels how a Send ended
type Outcome string

const (
	OutcomeCompleted       Outcome = "completed"       // sentinel received
	OutcomeEOF             Outcome = "eof"             // body ended without sentinel
	OutcomeInterrupted     Outcome = "interrupted"     // read failed after partial text
	OutcomeFailed          Outcome = "failed"          // request or stream failed, error recorded
	OutcomeUnauthenticated Outcome = "unauthenticated" // no credential
	OutcomeCancelled       Outcome = "cancelled"
)

// Assistant runs requests against the chat backend and records the
// exchange in a Conversation
type Assistant struct {
	conv     *Conversation
	streamer Streamer
	metrics  *monitoring.Metrics
	log      *zap.Logger
	busy     atomic.Bool

	// mu orders conversation writes of a running Send against Close
	mu     sync.Mutex
	closed bool
	abort  context.CancelFunc
}

// NewAssistant creates an assistant. metrics may be nil.
func NewAssistant(conv *Conversation, streamer Streamer, metrics *monitoring.Metrics, log *zap.Logger) *Assistant {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assistant{
		conv:     conv,
		streamer: streamer,
		metrics:  metrics,
		log:      log,
	}
}

// Conversation returns the conversation the assistant writes to
func (a *Assistant) Conversation() *Conversation {
	return a.conv
}

// Busy reports whether a reply is streaming
func (a *Assistant) Busy() bool {
	return a.busy.Load()
}

// Reset clears the conversation unless a reply is streaming
func (a *Assistant) Reset() error {
	if !a.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer a.busy.Store(false)
	a.conv.Clear()
	return nil
}

// Close aborts a streaming reply and clears the conversation. Whatever the
// aborted Send would still have written is dropped, and later Sends fail
// with ErrClosed.
func (a *Assistant) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.abort != nil {
		a.abort()
	}
	a.conv.Clear()
}

// Send appends text as a user message and streams the assistant's reply
// into the conversation. Backend failures are recorded as error messages,
// not returned. The returned error is non-nil only for rejected input, a
// busy or closed assistant, or cancellation of ctx.
func (a *Assistant) Send(ctx context.Context, credential, text string) (Outcome, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return "", ErrEmptyMessage
	}
	if err := utils.ValidateMessage(clean); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if !a.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer a.busy.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return "", ErrClosed
	}
	a.abort = cancel
	a.conv.AppendUser(clean)
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.abort = nil
		a.mu.Unlock()
	}()

	started := time.Now()
	outcome, err := a.run(ctx, credential)
	a.observe(outcome, time.Since(started))
	return outcome, err
}

func (a *Assistant) run(ctx context.Context, credential string) (Outcome, error) {
	if credential == "" {
		a.write(func() { a.conv.Fail(NotAuthenticatedReason) })
		return OutcomeUnauthenticated, nil
	}

	body, err := a.streamer.Stream(ctx, credential, a.conv.Messages())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return OutcomeCancelled, ctxErr
		}
		reason := failureReason(err)
		a.log.Warn("chat request failed", zap.String("reason", reason), zap.Error(err))
		a.write(func() { a.conv.Fail(reason) })
		return OutcomeFailed, nil
	}
	defer body.Close()

	res, err := stream.Read(ctx, body, nil, func(_, text string) error {
		a.write(func() { a.conv.ApplyDelta(text) })
		if a.metrics != nil {
			a.metrics.IncChatDeltas()
		}
		return nil
	})
	a.write(a.conv.Finish)

	switch {
	case err == nil && res.Completed:
		return OutcomeCompleted, nil
	case err == nil:
		if res.Pending != "" {
			a.log.Debug("chat stream ended with undecoded input", zap.Int("pending_bytes", len(res.Pending)))
		}
		return OutcomeEOF, nil
	case ctx.Err() != nil:
		return OutcomeCancelled, ctx.Err()
	case res.Deltas > 0:
		a.log.Warn("chat stream interrupted", zap.Int("deltas", res.Deltas), zap.Error(err))
		return OutcomeInterrupted, nil
	default:
		a.log.Warn("chat stream failed", zap.Error(err))
		a.write(func() { a.conv.Fail(failureReason(err)) })
		return OutcomeFailed, nil
	}
}

// write applies f to the conversation unless the assistant has been closed
func (a *Assistant) write(f func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		f()
	}
}

func (a *Assistant) observe(outcome Outcome, elapsed time.Duration) {
	if a.metrics != nil {
		a.metrics.RecordChatStream(string(outcome), elapsed)
	}
}

func failureReason(err error) string {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Reason
	}
	return err.Error()
}
