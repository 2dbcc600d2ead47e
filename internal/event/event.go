// Package event defines the lifecycle events a session emits for topic
// operations, and the listener contract used to observe them.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a lifecycle event.
type Kind int

const (
	TopicCreated       Kind = iota // create request resolved
	TopicListened                  // listen request for a new topic resolved
	TopicListenStopped             // stop-listening request resolved
	TopicDeleted                   // topic deleted, by us or by the server
	TopicLoaded                    // existing profile topic re-listened after a profile switch
	MessageSent                    // post request resolved
	MessageReceived                // a post arrived on a listened topic
)

var kindNames = map[Kind]string{
	TopicCreated:       "topic_created",
	TopicListened:      "topic_listened",
	TopicListenStopped: "topic_listen_stopped",
	TopicDeleted:       "topic_deleted",
	TopicLoaded:        "topic_loaded",
	MessageSent:        "message_sent",
	MessageReceived:    "message_received",
}

var kindFromName = map[string]Kind{
	"topic_created":        TopicCreated,
	"topic_listened":       TopicListened,
	"topic_listen_stopped": TopicListenStopped,
	"topic_deleted":        TopicDeleted,
	"topic_loaded":         TopicLoaded,
	"message_sent":         MessageSent,
	"message_received":     MessageReceived,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := kindFromName[s]
	if !ok {
		return fmt.Errorf("unknown event kind %q", s)
	}
	*k = v
	return nil
}

// ErrNoCause is reported by Cause for a successful event.
var ErrNoCause = errors.New("event: successful events have no cause")

// Event is the immutable outcome of a topic operation. Err is nil exactly
// when Success is true.
type Event struct {
	Topic   string
	Kind    Kind
	Success bool
	Err     error
}

// Succeeded builds a successful event.
func Succeeded(kind Kind, topic string) Event {
	return Event{Topic: topic, Kind: kind, Success: true}
}

// Failed builds a failed event. A nil cause is replaced with a generic one so
// that failed events always carry an error.
func Failed(kind Kind, topic string, cause error) Event {
	if cause == nil {
		cause = fmt.Errorf("%s %q failed", kind, topic)
	}
	return Event{Topic: topic, Kind: kind, Success: false, Err: cause}
}

// FromResult builds a successful event when err is nil and a failed one
// otherwise.
func FromResult(kind Kind, topic string, err error) Event {
	if err != nil {
		return Failed(kind, topic, err)
	}
	return Succeeded(kind, topic)
}

// Cause returns the error that made the operation fail.
func (e Event) Cause() error {
	if e.Success {
		return ErrNoCause
	}
	return e.Err
}

func (e Event) String() string {
	if e.Success {
		return fmt.Sprintf("%s %q ok", e.Kind, e.Topic)
	}
	return fmt.Sprintf("%s %q failed: %v", e.Kind, e.Topic, e.Err)
}

// Listener observes lifecycle events. OnEvent is called synchronously on the
// goroutine that completed the operation and must not block for long.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

// Handlers dispatches events to one optional callback per kind. Kinds with
// no callback are ignored.
type Handlers struct {
	Created       func(Event)
	Listened      func(Event)
	ListenStopped func(Event)
	Deleted       func(Event)
	Loaded        func(Event)
	Sent          func(Event)
	Received      func(Event)
}

func (h Handlers) OnEvent(e Event) {
	var fn func(Event)
	switch e.Kind {
	case TopicCreated:
		fn = h.Created
	case TopicListened:
		fn = h.Listened
	case TopicListenStopped:
		fn = h.ListenStopped
	case TopicDeleted:
		fn = h.Deleted
	case TopicLoaded:
		fn = h.Loaded
	case MessageSent:
		fn = h.Sent
	case MessageReceived:
		fn = h.Received
	}
	if fn != nil {
		fn(e)
	}
}
