package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream failed")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b := New("test", Settings{FailureThreshold: threshold, Cooldown: cooldown})
	b.now = clock.now
	return b, clock
}

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		threshold     int
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{"stays closed on successes", 3, []bool{true, true, true}, StateClosed},
		{"opens after consecutive failures", 3, []bool{false, false, false}, StateOpen},
		{"success resets the failure streak", 3, []bool{false, false, true, false, false}, StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBreaker(tt.threshold, time.Minute)
			for _, ok := range tt.requests {
				if ok {
					_ = b.Do(succeed, nil)
				} else {
					_ = b.Do(fail, nil)
				}
			}
			assert.Equal(t, tt.expectedState, b.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)

	require.ErrorIs(t, b.Do(fail, nil), errUpstream)

	called := false
	err := b.Do(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, uint64(1), b.Stats().Rejected)
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(1, 10*time.Second)
	_ = b.Do(fail, nil)

	clock.advance(10 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	// A failed probe re-opens immediately
	require.ErrorIs(t, b.Do(fail, nil), errUpstream)
	assert.Equal(t, StateOpen, b.State())

	clock.advance(10 * time.Second)
	require.NoError(t, b.Do(succeed, nil))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerIgnoredErrors(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	ignore := func(err error) bool { return errors.Is(err, context.Canceled) }

	err := b.Do(func() error { return context.Canceled }, ignore)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []string
	b := New("chat", Settings{
		FailureThreshold: 2,
		Cooldown:         time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})

	_ = b.Do(fail, nil)
	_ = b.Do(fail, nil)

	assert.Equal(t, []string{"chat:closed->open"}, transitions)
}
