// Package id provides centralized ID generation for the backend.
//
// IDs are prefixed UUIDv4 strings so they stay readable in logs:
//   - win_*: window registry entries
//   - req_*: API requests
//
// A prefix never changes for the lifetime of an ID and IDs are never reused,
// which lets the window registry treat a closed ID as permanently invalid.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// WindowID identifies a desktop window
type WindowID string

// RequestID identifies an API request
type RequestID string

const (
	WindowPrefix  = "win"
	RequestPrefix = "req"
)

// Generator produces prefixed identifiers
type Generator interface {
	WithPrefix(prefix string) string
}

// UUIDGenerator generates random UUIDv4 based identifiers
type UUIDGenerator struct{}

// WithPrefix returns "<prefix>_<uuid>"
func (UUIDGenerator) WithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// Default returns the process-wide generator
func Default() Generator {
	return UUIDGenerator{}
}

// NewWindowID generates a new window ID
func NewWindowID() WindowID {
	return WindowID(Default().WithPrefix(WindowPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().WithPrefix(RequestPrefix))
}

func (id WindowID) String() string  { return string(id) }
func (id RequestID) String() string { return string(id) }

// HasPrefix reports whether raw is a well-formed "<prefix>_<uuid>" identifier
func HasPrefix(raw, prefix string) bool {
	rest, ok := strings.CutPrefix(raw, prefix+"_")
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
