// Package httpapi implements the single-shot chat request used when no
// realtime channel is available.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/corpusai/corpus-cli/internal/auth"
	"github.com/corpusai/corpus-cli/internal/wire"
)

const chatPath = "/v1/chat"

// StatusError is a non-2xx chat response. The response body text is the
// human-readable error shown to the user.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return http.StatusText(e.StatusCode)
}

// Client issues chat requests against the Corpus server API.
type Client struct {
	baseURL    string
	creds      auth.Provider
	httpClient *http.Client
}

// NewClient creates a chat API client. timeout bounds each request and a
// timeout behaves exactly like a network error for callers.
func NewClient(baseURL string, creds auth.Provider, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SendChat posts one user message and blocks for the assistant's reply.
func (c *Client) SendChat(ctx context.Context, req wire.ChatRequest) (*wire.ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, chatPath, body)
	if err != nil {
		return nil, err
	}

	var resp wire.ChatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	return &resp, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("server URL not set")
	}
	token, err := c.creds.Token()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
