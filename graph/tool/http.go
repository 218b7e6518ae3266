package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPTool fetches web resources for research tasks.
//
// Input parameters:
//   - url: target URL (required)
//   - method: "GET" or "POST", default GET
//   - headers: optional map of header name to value
//   - body: optional request body for POST
//
// Output:
//   - status_code: HTTP status code
//   - body: response body, truncated to MaxBodyBytes
//   - truncated: true when the body was cut
type HTTPTool struct {
	client *http.Client

	// MaxBodyBytes caps the response body returned to the model.
	// Zero means the 64 KiB default.
	MaxBodyBytes int64
}

const defaultMaxBody = 64 << 10

// NewHTTPTool creates an HTTP tool with default settings. Timeouts come
// from the call context.
func NewHTTPTool() *HTTPTool {
	return &HTTPTool{client: &http.Client{}}
}

// Name returns "http_fetch".
func (h *HTTPTool) Name() string { return "http_fetch" }

// Call executes the request.
func (h *HTTPTool) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	urlStr, ok := input["url"].(string)
	if !ok || urlStr == "" {
		return nil, fmt.Errorf("url parameter required (string)")
	}

	method := http.MethodGet
	if m, ok := input["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("unsupported method %q (GET and POST only)", method)
	}

	var body io.Reader
	if b, ok := input["body"].(string); ok && b != "" {
		body = bytes.NewBufferString(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if headers, ok := input["headers"].(map[string]any); ok {
		for key, value := range headers {
			if s, ok := value.(string); ok {
				req.Header.Set(key, s)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBody
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	truncated := int64(len(data)) > limit
	if truncated {
		data = data[:limit]
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(data),
		"truncated":   truncated,
	}, nil
}
