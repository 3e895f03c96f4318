// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"loan-origination/internal/common/errors"
)

// RequestIDHeader correlates a request with backend logs.
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the bearer credential attached to every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Response is a successful (2xx) backend reply. Data is populated when the
// body is a JSON object.
type Response struct {
	StatusCode int                    `json:"statusCode"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Raw        []byte                 `json:"-"`
	RequestID  string                 `json:"requestId,omitempty"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tokens:  tokens,
	}
}

// WithHTTPClient replaces the underlying transport client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// URL resolves path against the base URL. Absolute URLs are returned as is.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// NewRequest builds a request with the bearer credential and a fresh request
// id. Token failures are returned unchanged.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.New().String())

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// Do sends req exactly once. A failure with no response becomes a
// TRANSPORT_ERROR; a non-2xx response becomes a BACKEND_ERROR whose message
// is resolved from the body, or is the generic status message when the body
// cannot be read. A 2xx whose body cannot be read is a MALFORMED_RESPONSE.
func (c *Client) Do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// A response arrived, so its status is kept even though the body is lost.
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, errors.NewBackendError(resp.StatusCode, GenericStatusMessage(resp.StatusCode), "")
		}
		return nil, errors.NewMalformedResponseError(resp.StatusCode, fmt.Sprintf("failed to read response body: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewBackendError(resp.StatusCode, ExtractErrorMessage(resp.StatusCode, body), string(body))
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Raw:        body,
		RequestID:  req.Header.Get(RequestIDHeader),
	}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		var data map[string]interface{}
		if json.Unmarshal(trimmed, &data) == nil {
			out.Data = data
		}
	}
	return out, nil
}

// DoJSON sends payload (nil for no body) as JSON.
func (c *Client) DoJSON(ctx context.Context, method, path string, payload interface{}) (*Response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.Do(req)
}
