// Package client is the session's network backend: a websocket connection to
// the broker, plus a small HTTP client for its REST endpoints.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yamca/yamca/internal/protocol"
	"github.com/yamca/yamca/internal/session"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// ErrClosed is returned by calls made on, or interrupted by, a closed
// connection.
var ErrClosed = errors.New("connection closed")

// Dialer opens websocket backends for a session.
type Dialer struct {
	Token string
	// Secure selects wss:// instead of ws://.
	Secure bool
}

// Dial implements session.Dialer.
func (d Dialer) Dial(ctx context.Context, ep session.Endpoint, identity string, n session.Notifier) (session.Backend, error) {
	b, err := Dial(ctx, d.URL(ep, identity), d.Token, n)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// URL returns the websocket URL for identity at ep.
func (d Dialer) URL(ep session.Endpoint, identity string) string {
	scheme := "ws"
	if d.Secure {
		scheme = "wss"
	}
	q := url.Values{"user": {identity}}
	if d.Token != "" {
		q.Set("token", d.Token)
	}
	u := url.URL{Scheme: scheme, Host: ep.String(), Path: "/ws", RawQuery: q.Encode()}
	return u.String()
}

// WSBackend is one authenticated websocket connection. Requests are matched
// to responses by id, so calls on different topics may be in flight at once.
type WSBackend struct {
	conn     *websocket.Conn
	notifier session.Notifier
	logger   zerolog.Logger

	writeMu sync.Mutex // serialises all conn writes (requests, pings, close)

	mu      sync.Mutex
	pending map[string]chan protocol.Envelope
	err     error // why the connection ended
	done    chan struct{}
}

// Dial connects to rawURL and starts the read and ping loops.
func Dial(ctx context.Context, rawURL, token string, n session.Notifier) (*WSBackend, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial broker: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	b := &WSBackend{
		conn:     conn,
		notifier: n,
		logger:   log.With().Str("component", "client").Logger(),
		pending:  make(map[string]chan protocol.Envelope),
		done:     make(chan struct{}),
	}
	go b.readLoop()
	go b.pingLoop()
	return b, nil
}

func (b *WSBackend) CreateTopic(ctx context.Context, topic string) error {
	return b.call(ctx, protocol.OpCreate, topic, nil)
}

func (b *WSBackend) ListenForTopic(ctx context.Context, topic string) error {
	return b.call(ctx, protocol.OpListen, topic, nil)
}

func (b *WSBackend) StopListening(ctx context.Context, topic string) error {
	return b.call(ctx, protocol.OpStop, topic, nil)
}

func (b *WSBackend) DeleteTopic(ctx context.Context, topic string) error {
	return b.call(ctx, protocol.OpDelete, topic, nil)
}

func (b *WSBackend) Post(ctx context.Context, topic, body string) error {
	return b.call(ctx, protocol.OpPost, topic, &protocol.Post{Body: body})
}

func (b *WSBackend) call(ctx context.Context, op protocol.Op, topic string, post *protocol.Post) error {
	id := uuid.NewString()
	ch := make(chan protocol.Envelope, 1)

	b.mu.Lock()
	if b.err != nil {
		err := b.err
		b.mu.Unlock()
		return err
	}
	b.pending[id] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	req := protocol.Envelope{Type: protocol.MsgRequest, ID: id, Op: op, Topic: topic, Post: post}
	if err := b.write(req); err != nil {
		return fmt.Errorf("%s %q: %w", op, topic, err)
	}

	select {
	case resp := <-ch:
		return resp.Err()
	case <-ctx.Done():
		return fmt.Errorf("%s %q: %w", op, topic, ctx.Err())
	case <-b.done:
		return fmt.Errorf("%s %q: %w", op, topic, b.Err())
	}
}

func (b *WSBackend) write(v any) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return b.conn.WriteJSON(v)
}

func (b *WSBackend) readLoop() {
	b.conn.SetPongHandler(func(string) error {
		b.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	b.conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			b.finish(err)
			return
		}

		var msg protocol.Envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			b.logger.Warn().Err(err).Msg("ignoring malformed message")
			continue
		}
		b.dispatch(msg)
	}
}

func (b *WSBackend) dispatch(msg protocol.Envelope) {
	switch msg.Type {
	case protocol.MsgResponse:
		b.mu.Lock()
		ch, ok := b.pending[msg.ID]
		b.mu.Unlock()
		if !ok {
			b.logger.Debug().Str("id", msg.ID).Msg("response for abandoned request")
			return
		}
		ch <- msg
	case protocol.MsgMessage:
		b.notifier.MessageReceived(msg.Topic)
	case protocol.MsgTopicDeleted:
		b.notifier.TopicDeleted(msg.Topic)
	case protocol.MsgError:
		b.logger.Warn().Str("code", msg.Code).Str("error", msg.Error).Msg("broker error")
	default:
		b.logger.Debug().Str("type", string(msg.Type)).Msg("ignoring unknown message type")
	}
}

// pingLoop sends periodic pings until the connection ends.
func (b *WSBackend) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.writeMu.Lock()
			b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := b.conn.WriteMessage(websocket.PingMessage, nil)
			b.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// finish records why the connection ended and releases waiting calls.
func (b *WSBackend) finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		err = ErrClosed
	} else {
		err = fmt.Errorf("%w: %v", ErrClosed, err)
	}
	b.err = err
	close(b.done)
}

// Err reports why the connection ended, or nil while it is open.
func (b *WSBackend) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Done is closed when the connection ends.
func (b *WSBackend) Done() <-chan struct{} {
	return b.done
}

// Close sends a close frame and tears the connection down. Calls still
// waiting fail with ErrClosed.
func (b *WSBackend) Close() error {
	b.writeMu.Lock()
	b.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	b.writeMu.Unlock()

	b.finish(websocket.ErrCloseSent)
	return b.conn.Close()
}
