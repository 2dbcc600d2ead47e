package session

import (
	"net"
	"strconv"
	"strings"
	"unicode"
)

// Endpoint is the broker address a session talks to.
type Endpoint struct {
	Host string
	Port int
}

// ParseEndpoint parses "host:port".
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, &ValidationError{Field: "endpoint", Value: s, Reason: err.Error()}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, &ValidationError{Field: "endpoint", Value: s, Reason: "port is not a number"}
	}
	ep := Endpoint{Host: host, Port: port}
	return ep, ep.Validate()
}

// Validate checks that the host is set and the port is in range.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return &ValidationError{Field: "endpoint", Value: e.String(), Reason: "empty host"}
	}
	if e.Port < 1 || e.Port > 65535 {
		return &ValidationError{Field: "endpoint", Value: e.String(), Reason: "port out of range"}
	}
	return nil
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ValidateTopic checks a topic name: it must contain a non-space character
// and no control characters.
func ValidateTopic(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "topic", Value: name, Reason: "empty name"}
	}
	if len(name) > 128 {
		return &ValidationError{Field: "topic", Value: name, Reason: "longer than 128 bytes"}
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return &ValidationError{Field: "topic", Value: name, Reason: "contains control characters"}
		}
	}
	return nil
}
