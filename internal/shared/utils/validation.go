package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Size limits
const (
	MaxMessageSize = 16 * 1024 // single chat message, in runes
	MaxIDLength    = 128
	MaxTitleLength = 256

	// MaxCoordinate bounds window geometry so a client cannot push absurd values
	// into the registry. Negative positions are allowed (dragged off-screen).
	MaxCoordinate = 1 << 20
)

// SafeIDPattern allows alphanumeric, hyphens, underscores
var SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates an ID field (window ids, app ids)
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateMessage validates a chat message. Whitespace-only input is rejected.
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message is required")
	}
	return ValidateString(message, "message", 1, MaxMessageSize, true)
}

// ValidatePosition checks a window position
func ValidatePosition(x, y int) error {
	if abs(x) > MaxCoordinate || abs(y) > MaxCoordinate {
		return fmt.Errorf("position (%d, %d) out of range", x, y)
	}
	return nil
}

// ValidateSize checks a window size. Both dimensions must be positive.
func ValidateSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("size must be positive, got %dx%d", width, height)
	}
	if width > MaxCoordinate || height > MaxCoordinate {
		return fmt.Errorf("size %dx%d out of range", width, height)
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
