package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/yamca/yamca/internal/protocol"
	"github.com/yamca/yamca/internal/session"
)

// HTTPClient makes REST calls to the broker.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:5000").
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ForEndpoint returns an HTTP client for the broker at ep.
func ForEndpoint(ep session.Endpoint, token string) *HTTPClient {
	return NewHTTPClient("http://"+ep.String(), token)
}

// Topics fetches /api/topics.
func (c *HTTPClient) Topics(ctx context.Context) ([]protocol.TopicInfo, error) {
	var out []protocol.TopicInfo
	if err := c.get(ctx, "/api/topics", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Posts fetches the retained history of topic.
func (c *HTTPClient) Posts(ctx context.Context, topic string) ([]protocol.Post, error) {
	var out []protocol.Post
	if err := c.get(ctx, "/api/topics/"+url.PathEscape(topic)+"/posts", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
