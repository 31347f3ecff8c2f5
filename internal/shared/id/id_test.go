package id

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWindowID(t *testing.T) {
	a := NewWindowID()
	b := NewWindowID()

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a.String(), WindowPrefix+"_"))
	assert.True(t, HasPrefix(a.String(), WindowPrefix))
}

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		prefix string
		want   bool
	}{
		{"window id", string(NewWindowID()), WindowPrefix, true},
		{"request id", string(NewRequestID()), RequestPrefix, true},
		{"wrong prefix", string(NewRequestID()), WindowPrefix, false},
		{"not a uuid", "win_abc", WindowPrefix, false},
		{"empty", "", WindowPrefix, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPrefix(tt.raw, tt.prefix))
		})
	}
}

func TestConcurrentGeneration(t *testing.T) {
	const n = 200
	var (
		mu   sync.Mutex
		seen = make(map[WindowID]struct{}, n)
		wg   sync.WaitGroup
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewWindowID()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}
