// Package httpapi is the JSON-over-HTTP plumbing shared by the hosted model
// adapters: request encoding, auth headers, error bodies and the split
// between deadline-bound and streaming clients.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const maxErrorBody = 8 << 10

// Client talks to one provider. One-shot calls are bounded by the timeout
// given to New; streams only by their context.
type Client struct {
	provider string
	baseURL  string
	header   http.Header
	oneShot  *http.Client
	streamed *http.Client
}

// New returns a client for baseURL. header is sent with every request.
func New(provider, baseURL string, timeout time.Duration, header http.Header) *Client {
	if header == nil {
		header = http.Header{}
	}
	return &Client{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		header:   header,
		oneShot:  &http.Client{Timeout: timeout},
		streamed: &http.Client{},
	}
}

func (c *Client) Provider() string { return c.provider }
func (c *Client) BaseURL() string { return c.baseURL }

// Bearer builds the Authorization header most providers use.
func Bearer(key string) http.Header {
	return http.Header{"Authorization": {"Bearer " + key}}
}

// StatusError is a reply outside 2xx.
type StatusError struct {
	Provider   string
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.Code, e.Message)
}

// Temporary reports whether the same request may succeed later.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// IsStatus reports whether err is a StatusError.
func IsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	ok := errors.As(err, &se)
	return se, ok
}

// Do sends in as JSON (nil for no body) and decodes a 2xx reply into out
// (nil to discard it).
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.send(ctx, c.oneShot, method, path, in, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "decode "+c.provider+" reply", goerr.V("path", path))
	}
	return nil
}

// Stream POSTs in and returns the open body of a 2xx reply for incremental
// decoding. The caller closes it.
func (c *Client) Stream(ctx context.Context, path string, in any, accept string) (io.ReadCloser, error) {
	resp, err := c.send(ctx, c.streamed, http.MethodPost, path, in, accept)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Close drops idle streaming connections.
func (c *Client) Close() {
	c.streamed.CloseIdleConnections()
	c.oneShot.CloseIdleConnections()
}

func (c *Client) send(ctx context.Context, hc *http.Client, method, path string, in any, accept string) (*http.Response, error) {
	body := io.Reader(http.NoBody)
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", c.provider, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.provider, err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, c.provider+" request", goerr.V("method", method), goerr.V("path", path))
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Provider:   c.provider,
			Code:       resp.StatusCode,
			Message:    errorMessage(raw, resp.StatusCode),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return resp, nil
}

// errorMessage pulls the human-readable part out of the error shapes
// providers use: {"error":{"message":...}}, {"error":"..."} and
// {"message":...}. Anything else is returned trimmed.
func errorMessage(raw []byte, code int) string {
	var shape struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(raw, &shape) == nil {
		var nested struct {
			Message string `json:"message"`
		}
		var flat string
		switch {
		case json.Unmarshal(shape.Error, &nested) == nil && nested.Message != "":
			return nested.Message
		case json.Unmarshal(shape.Error, &flat) == nil && flat != "":
			return flat
		case shape.Message != "":
			return shape.Message
		}
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return msg
	}
	return http.StatusText(code)
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
