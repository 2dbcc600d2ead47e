// Package protocol defines the JSON envelopes exchanged between the broker
// and its websocket clients.
package protocol

import (
	"errors"
	"fmt"
	"time"
)

type MessageType string

const (
	MsgRequest      MessageType = "request"       // client -> broker
	MsgResponse     MessageType = "response"      // broker -> client, answers one request
	MsgMessage      MessageType = "message"       // broker -> client, a post on a listened topic
	MsgTopicDeleted MessageType = "topic_deleted" // broker -> client, listened topic deleted elsewhere
	MsgError        MessageType = "error"         // broker -> client, unparseable request
)

type Op string

const (
	OpCreate Op = "create"
	OpListen Op = "listen"
	OpStop   Op = "stop"
	OpDelete Op = "delete"
	OpPost   Op = "post"
)

// Valid reports whether op is one the broker understands.
func (o Op) Valid() bool {
	switch o {
	case OpCreate, OpListen, OpStop, OpDelete, OpPost:
		return true
	}
	return false
}

// Error codes carried in failed responses.
const (
	CodeExists       = "exists"
	CodeNotFound     = "not_found"
	CodeNotListening = "not_listening"
	CodeBadRequest   = "bad_request"
)

// Envelope is every websocket message in both directions. Fields not used by
// a message type are omitted.
type Envelope struct {
	Type  MessageType `json:"type"`
	ID    string      `json:"id,omitempty"`
	Op    Op          `json:"op,omitempty"`
	Topic string      `json:"topic,omitempty"`
	OK    bool        `json:"ok,omitempty"`
	Code  string      `json:"code,omitempty"`
	Error string      `json:"error,omitempty"`
	Post  *Post       `json:"post,omitempty"`
}

// Post is a message published to a topic.
type Post struct {
	Author string    `json:"author"`
	Body   string    `json:"body"`
	At     time.Time `json:"at"`
}

// TopicInfo is one row of the broker's /api/topics listing.
type TopicInfo struct {
	Name      string    `json:"name"`
	Listeners int       `json:"listeners"`
	Posts     int       `json:"posts"`
	CreatedAt time.Time `json:"createdAt"`
}

var (
	ErrTopicExists   = errors.New("topic already exists")
	ErrTopicNotFound = errors.New("topic not found")
	ErrNotListening  = errors.New("not listening to topic")
	ErrBadRequest    = errors.New("bad request")
)

var codeErrors = map[string]error{
	CodeExists:       ErrTopicExists,
	CodeNotFound:     ErrTopicNotFound,
	CodeNotListening: ErrNotListening,
	CodeBadRequest:   ErrBadRequest,
}

// CodeOf returns the wire code for err, or "" if it has none.
func CodeOf(err error) string {
	for code, sentinel := range codeErrors {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// Err converts a failed response back into an error that matches the
// broker-side sentinel with errors.Is.
func (e Envelope) Err() error {
	if e.OK {
		return nil
	}
	msg := e.Error
	if msg == "" {
		msg = "request failed"
	}
	if sentinel, ok := codeErrors[e.Code]; ok {
		return fmt.Errorf("%s %q: %w", e.Op, e.Topic, sentinel)
	}
	return fmt.Errorf("%s %q: %s", e.Op, e.Topic, msg)
}
