package session

import "context"

// Backend is the network side of a session. Each call blocks until the
// broker resolves the request or ctx ends.
type Backend interface {
	CreateTopic(ctx context.Context, topic string) error
	ListenForTopic(ctx context.Context, topic string) error
	StopListening(ctx context.Context, topic string) error
	DeleteTopic(ctx context.Context, topic string) error
	Post(ctx context.Context, topic, body string) error
	Close() error
}

// Notifier receives broker-initiated notifications for one connection. It is
// called from the backend's network goroutine.
type Notifier interface {
	// TopicDeleted reports that another client deleted a listened topic.
	TopicDeleted(topic string)
	// MessageReceived reports a post on a listened topic.
	MessageReceived(topic string)
}

// Dialer opens a backend connection on behalf of identity.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint, identity string, n Notifier) (Backend, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, ep Endpoint, identity string, n Notifier) (Backend, error)

func (f DialerFunc) Dial(ctx context.Context, ep Endpoint, identity string, n Notifier) (Backend, error) {
	return f(ctx, ep, identity, n)
}
