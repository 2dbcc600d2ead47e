package session

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyConfigured  = errors.New("session already configured")
	ErrNotConfigured      = errors.New("session not configured")
	ErrNotReady           = errors.New("session has no active profile")
	ErrStoreUnavailable   = errors.New("profile store unavailable")
	ErrBackendUnreachable = errors.New("backend unreachable")
	ErrInterrupted        = errors.New("session reconfigured concurrently")

	// Causes carried by failed lifecycle events.
	ErrNotSubscribed     = errors.New("not listening to topic")
	ErrAlreadySubscribed = errors.New("already listening to topic")
	ErrSessionReset      = errors.New("session reset before the operation completed")
)

// ConfigurationError reports a session used out of its configuration
// lifecycle: configured twice, used before configuration, or configured with
// an unusable profile store.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ProfileError reports a failure to create or load a local identity.
type ProfileError struct {
	Op   string // "create" or "load"
	Name string
	Err  error
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("profile %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *ProfileError) Unwrap() error { return e.Err }

// ValidationError reports an unusable argument.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}
