package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrProtocolStartup - the external tool process did not complete its handshake
	ErrProtocolStartup = errors.New("protocol startup failed")

	// ErrProtocolTimeout - no matching response arrived within the call deadline
	ErrProtocolTimeout = errors.New("protocol call timed out")

	// ErrProtocolCall - the tool process returned an error or the stream broke mid-call
	ErrProtocolCall = errors.New("protocol call failed")

	// ErrFetch - a per-source fetch failed (network, auth, parse); never fatal to a cycle
	ErrFetch = errors.New("fetch failed")

	// ErrCacheIO - disk persistence failed; cache stays correct in memory
	ErrCacheIO = errors.New("cache io failed")

	// ErrNotConfigured - a source has no collaborator wired; reported as empty, not fatal
	ErrNotConfigured = errors.New("not configured")

	// ErrInternal - internal invariant violation
	ErrInternal = errors.New("internal error")
)
