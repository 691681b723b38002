package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", message, err)
}

// WrapWithCategory attaches a taxonomy category to an error while keeping
// the original message visible.
func WrapWithCategory(err error, message string, category error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %v: %w", message, err, category)
}

// IsCategory checks if error belongs to specific category
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

// ProtocolStartup wraps a message as a protocol startup failure.
func ProtocolStartup(message string) error {
	return fmt.Errorf("%s: %w", message, ErrProtocolStartup)
}

// ProtocolTimeout wraps a message as a protocol call timeout.
func ProtocolTimeout(message string) error {
	return fmt.Errorf("%s: %w", message, ErrProtocolTimeout)
}

// ProtocolCall wraps a message as a protocol call failure.
func ProtocolCall(message string) error {
	return fmt.Errorf("%s: %w", message, ErrProtocolCall)
}

// Fetch wraps a message as a per-source fetch failure.
func Fetch(message string) error {
	return fmt.Errorf("%s: %w", message, ErrFetch)
}

// CacheIO wraps a message as a cache persistence failure.
func CacheIO(message string) error {
	return fmt.Errorf("%s: %w", message, ErrCacheIO)
}

// NotConfigured wraps a message as a missing-collaborator condition.
func NotConfigured(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotConfigured)
}

// Internal wraps a message as an internal error.
func Internal(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInternal)
}

// Category returns the taxonomy name for an error, for activity log records.
func Category(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.Is(err, ErrProtocolStartup):
		return "ProtocolStartup"
	case errors.Is(err, ErrProtocolTimeout):
		return "ProtocolTimeout"
	case errors.Is(err, ErrProtocolCall):
		return "ProtocolCall"
	case errors.Is(err, ErrFetch):
		return "Fetch"
	case errors.Is(err, ErrCacheIO):
		return "CacheIO"
	case errors.Is(err, ErrNotConfigured):
		return "NotConfigured"
	case errors.Is(err, ErrInternal):
		return "Internal"
	default:
		return "Unknown"
	}
}
