package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/raushankrgupta/meal-planner/utils"
)

// GenericMessage is shown when the server gives no usable error text.
const GenericMessage = "Network error"

// Error is returned for any failed call. Message is the server's own
// error text when it sent one.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// ServerMessage returns the server-provided message carried by err, or
// fallback when err carries none.
func ServerMessage(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status != 0 && apiErr.Message != GenericMessage {
		return apiErr.Message
	}
	return fallback
}

// Client talks to the meal planner API. Every call is sent once: no retry,
// no timeout, no caching.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL. A nil httpClient uses a plain client
// with no timeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	normalized, err := utils.NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: normalized, http: httpClient}, nil
}

// BaseURL is the normalized API address.
func (c *Client) BaseURL() string { return c.baseURL }

// Request sends body as JSON to path and decodes the response into out when
// out is non-nil. A non-empty token is sent as a bearer credential.
func (c *Client) Request(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Message: GenericMessage, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Status: resp.StatusCode, Message: GenericMessage, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Status: resp.StatusCode, Message: GenericMessage, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return GenericMessage
	}
	switch v := payload.Error.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if payload.Message != "" {
		return payload.Message
	}
	return GenericMessage
}
