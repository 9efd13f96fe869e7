package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alvmarrod/profile-weaver/internal/storage"
)

// UploadError is returned when the endpoint answers with a non-2xx status
type UploadError struct {
	StatusCode int
	StatusText string
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("Upload failed: %d %s - %s", e.StatusCode, e.StatusText, e.Body)
}

// payload is the JSON request body
type payload struct {
	Profiles []storage.Profile `json:"profiles"`
	Proxy    *string           `json:"proxy"`
}

// Client posts batches to a remote endpoint
type Client struct {
	httpClient *http.Client
}

// NewClient wraps httpClient; nil uses a client without timeout
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

// Upload sends items to endpoint tagged with proxy ("" is sent as null)
// The decoded JSON response is returned, or an empty map if it isn't an object
func (c *Client) Upload(ctx context.Context, endpoint string, items []storage.Profile, proxy string) (map[string]interface{}, error) {
	body := payload{Profiles: items}
	if body.Profiles == nil {
		body.Profiles = []storage.Profile{}
	}
	if proxy != "" {
		body.Proxy = &proxy
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach upload endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UploadError{
			StatusCode: resp.StatusCode,
			StatusText: statusText(resp),
			Body:       string(respBody),
		}
	}

	result := map[string]interface{}{}
	if err := json.Unmarshal(respBody, &result); err != nil || result == nil {
		return map[string]interface{}{}, nil
	}
	return result, nil
}

// statusText strips the numeric code from resp.Status ("404 Not Found" -> "Not Found")
func statusText(resp *http.Response) string {
	prefix := fmt.Sprintf("%d ", resp.StatusCode)
	if strings.HasPrefix(resp.Status, prefix) {
		return strings.TrimPrefix(resp.Status, prefix)
	}
	return http.StatusText(resp.StatusCode)
}
