package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alvmarrod/profile-weaver/internal/storage"
)

// Messenger delivers a request and returns its response
// Transport failures are errors; handler failures come back as error responses
type Messenger interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// Sink turns a Messenger into a batch sink for the scraper
type Sink struct {
	messenger Messenger
}

// NewSink creates a sink sending SCRAPE_BATCH messages
func NewSink(m Messenger) *Sink {
	return &Sink{messenger: m}
}

// SendBatch delivers items and converts an error response into an error
func (s *Sink) SendBatch(ctx context.Context, items []storage.Profile) error {
	resp, err := s.messenger.Send(ctx, Request{Type: TypeScrapeBatch, Items: items})
	if err != nil {
		return err
	}
	return AsError(resp)
}

// AsError returns nil for non-error responses
func AsError(resp Response) error {
	if resp.Status() != StatusError {
		return nil
	}
	msg := resp.Err()
	if msg == "" {
		msg = "unknown error"
	}
	return errors.New(msg)
}

// Client sends messages to a remote "serve" instance
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts req to /messages
func (c *Client) Send(ctx context.Context, req Request) (Response, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to build message request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach message server: %w", err)
	}
	defer httpResp.Body.Close()

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response (HTTP %d): %w", req.Type, httpResp.StatusCode, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty %s response (HTTP %d)", req.Type, httpResp.StatusCode)
	}
	return resp, nil
}
