// Package broker is the websocket topic broker sessions talk to.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yamca/yamca/internal/config"
	"github.com/yamca/yamca/internal/protocol"
)

type Server struct {
	config         config.BrokerConfig
	store          *Store
	hub            *Hub
	metrics        *Metrics
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	started        time.Time
	logger         zerolog.Logger
}

func NewServer(cfg config.BrokerConfig) *Server {
	logger := log.With().Str("component", "broker").Logger()
	metrics := NewMetrics()
	s := &Server{
		config:         cfg,
		store:          NewStore(cfg.HistoryLimit),
		metrics:        metrics,
		hub:            NewHub(cfg.ClientBuffer, cfg.MaxConnections, metrics, logger),
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		started:        time.Now(),
		logger:         logger,
	}
	s.hub.onRemove = s.store.Drop

	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}
	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/topics", s.handleTopics)
	mux.HandleFunc("/api/topics/", s.handleTopicPosts)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
}

// Handler returns the broker's routes wrapped in the security headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		s.metrics.Rejected.WithLabelValues("unauthorized").Inc()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		s.metrics.Rejected.WithLabelValues("no_user").Inc()
		http.Error(w, "missing user", http.StatusBadRequest)
		return
	}
	if s.config.MaxConnections > 0 && s.hub.ClientCount() >= s.config.MaxConnections {
		s.metrics.Rejected.WithLabelValues("limit").Inc()
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("ws upgrade error")
		return
	}

	c, err := s.hub.AddClient(conn, user)
	if err != nil {
		s.metrics.Rejected.WithLabelValues("limit").Inc()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(writeTimeout))
		conn.Close()
		return
	}

	s.logger.Info().Str("user", user).Str("remote", r.RemoteAddr).Msg("websocket client connected")
	go s.readPump(c, r.RemoteAddr)
}

func (s *Server) readPump(c *client, remote string) {
	defer func() {
		s.hub.RemoveClient(c)
		s.logger.Info().Str("user", c.user).Str("remote", remote).Msg("websocket client disconnected")
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req protocol.Envelope
		if err := json.Unmarshal(data, &req); err != nil {
			s.hub.Send(c, protocol.Envelope{Type: protocol.MsgError, Code: protocol.CodeBadRequest, Error: "malformed message"})
			continue
		}
		s.handleRequest(c, req)
	}
}

func (s *Server) handleRequest(c *client, req protocol.Envelope) {
	start := time.Now()
	err := s.apply(c, req)

	resp := protocol.Envelope{
		Type:  protocol.MsgResponse,
		ID:    req.ID,
		Op:    req.Op,
		Topic: req.Topic,
		OK:    err == nil,
	}
	result := "ok"
	if err != nil {
		resp.Code = protocol.CodeOf(err)
		resp.Error = err.Error()
		result = resp.Code
		if result == "" {
			result = "error"
		}
	}
	s.hub.Send(c, resp)

	s.metrics.Requests.WithLabelValues(string(req.Op), result).Inc()
	s.metrics.RequestDuration.WithLabelValues(string(req.Op)).Observe(time.Since(start).Seconds())
	s.logger.Debug().Str("user", c.user).Str("op", string(req.Op)).Str("topic", req.Topic).Str("result", result).Msg("request")
}

func (s *Server) apply(c *client, req protocol.Envelope) error {
	if req.Type != protocol.MsgRequest || !req.Op.Valid() {
		return fmt.Errorf("%w: unknown request %q/%q", protocol.ErrBadRequest, req.Type, req.Op)
	}
	if strings.TrimSpace(req.Topic) == "" {
		return fmt.Errorf("%w: empty topic", protocol.ErrBadRequest)
	}

	switch req.Op {
	case protocol.OpCreate:
		if err := s.store.Create(req.Topic); err != nil {
			return err
		}
		s.metrics.Topics.Set(float64(s.store.Count()))
		return nil

	case protocol.OpListen:
		return s.store.Listen(c, req.Topic)

	case protocol.OpStop:
		return s.store.Stop(c, req.Topic)

	case protocol.OpDelete:
		listeners, err := s.store.Delete(req.Topic)
		if err != nil {
			return err
		}
		s.metrics.Topics.Set(float64(s.store.Count()))
		s.hub.Push(listeners, c, protocol.Envelope{Type: protocol.MsgTopicDeleted, Topic: req.Topic})
		return nil

	case protocol.OpPost:
		if req.Post == nil || req.Post.Body == "" {
			return fmt.Errorf("%w: empty post", protocol.ErrBadRequest)
		}
		post := protocol.Post{Author: c.user, Body: req.Post.Body, At: time.Now().UTC()}
		listeners, err := s.store.Post(req.Topic, post)
		if err != nil {
			return err
		}
		s.hub.Push(listeners, c, protocol.Envelope{Type: protocol.MsgMessage, Topic: req.Topic, Post: &post})
		return nil
	}
	return protocol.ErrBadRequest
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.store.List())
}

// handleTopicPosts serves /api/topics/{name}/posts.
func (s *Server) handleTopicPosts(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/topics/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[1] != "posts" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	name, err := url.PathUnescape(parts[0])
	if err != nil {
		http.Error(w, "invalid topic name", http.StatusBadRequest)
		return
	}

	posts, err := s.store.History(name)
	if err != nil {
		http.Error(w, "topic not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(posts)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.collectHealth(ctx))
}

func (s *Server) authorize(r *http.Request) bool {
	token := s.config.AuthToken
	if token == "" {
		return true
	}

	if r.URL.Query().Get("token") == token {
		return true
	}

	if r.Header.Get("X-Yamca-Token") == token {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == token {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Host == r.Host {
		return true
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// Close disconnects every client.
func (s *Server) Close() {
	s.hub.Close()
}

// ListenAndServe serves the broker until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("broker listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
