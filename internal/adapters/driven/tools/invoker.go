package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

// Ensure HTTPInvoker implements the interface.
var _ driven.ToolInvoker = (*HTTPInvoker)(nil)

// Default configuration values.
const (
	DefaultBaseURL       = "http://localhost:5000"
	DefaultTimeout       = 300 * time.Second
	DefaultRatePerSecond = 2.0
)

// timeoutMessage is recorded when a tool exceeds its timeout.
const timeoutMessage = "request timeout - analysis took too long"

// Config holds configuration for the HTTP tool invoker.
type Config struct {
	// BaseURL is prefixed to each tool endpoint (default: http://localhost:5000).
	BaseURL string

	// Timeout bounds each call (default: 300s).
	Timeout time.Duration

	// RatePerSecond paces calls across all tools (default: 2). Negative disables pacing.
	RatePerSecond float64
}

// HTTPInvoker posts JSON payloads to tool prediction endpoints.
type HTTPInvoker struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewHTTPInvoker creates a tool invoker.
func NewHTTPInvoker(cfg Config) *HTTPInvoker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RatePerSecond == 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}

	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond < 0 {
		limit = rate.Inf
	}

	return &HTTPInvoker{
		client:  &http.Client{},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// toolReply is the envelope tool servers answer with.
type toolReply struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// Invoke posts payload to the tool endpoint and returns the response body.
// Tool-level failures are *domain.ToolError values.
func (i *HTTPInvoker) Invoke(ctx context.Context, tool domain.ToolDescriptor, payload map[string]any) (json.RawMessage, error) {
	if err := i.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: wait for rate limiter: %w", domain.ErrToolInvocation, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload: %w", domain.ErrToolInvocation, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	url := i.endpoint(tool)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrToolInvocation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Debug("Invoking tool %s at %s", tool.ID, url)
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, i.transportError(ctx, callCtx, tool, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, i.transportError(ctx, callCtx, tool, url, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ToolError{
			Tool:    tool.ID,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}

	if !json.Valid(respBody) {
		quoted, _ := json.Marshal(string(respBody))
		return quoted, nil
	}

	var reply toolReply
	if json.Unmarshal(respBody, &reply) == nil && reply.Success != nil && !*reply.Success {
		msg := reply.Error
		if msg == "" {
			msg = "tool reported failure"
		}
		return nil, &domain.ToolError{Tool: tool.ID, Message: msg}
	}
	return respBody, nil
}

func (i *HTTPInvoker) endpoint(tool domain.ToolDescriptor) string {
	path := tool.Endpoint
	if path == "" {
		path = "/api/" + string(tool.ID) + "/predict"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return i.baseURL + path
}

// transportError separates the per-call timeout from caller cancellation.
func (i *HTTPInvoker) transportError(parent, callCtx context.Context, tool domain.ToolDescriptor, url string, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %w", domain.ErrToolInvocation, parent.Err())
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &domain.ToolError{Tool: tool.ID, Message: timeoutMessage}
	}
	logger.Debug("tool call failed: %v", goerr.Wrap(err, "tool request", goerr.V("tool", tool.ID), goerr.V("url", url)))
	return &domain.ToolError{Tool: tool.ID, Message: err.Error()}
}
