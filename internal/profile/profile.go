// Package profile stores local identities and the topics each one listens
// to.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	ErrExists      = errors.New("profile already exists")
	ErrNotFound    = errors.New("profile not found")
	ErrUnavailable = errors.New("profile store unavailable")
	ErrInvalidName = errors.New("invalid profile name")
)

// Store creates, loads and updates profiles. Implementations must be safe
// for concurrent use.
type Store interface {
	// Check reports ErrUnavailable (wrapped) when the store cannot be used.
	Check() error
	CreateProfile(name string) error
	// LoadProfile returns the topics of an existing profile.
	LoadProfile(name string) ([]string, error)
	AddTopic(name, topic string) error
	RemoveTopic(name, topic string) error
}

// ValidateName checks that name is usable as a profile identifier. Names
// become file names, so path separators and control characters are refused.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > 64 {
		return fmt.Errorf("%w: longer than 64 bytes", ErrInvalidName)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, r)
		}
	}
	return nil
}
