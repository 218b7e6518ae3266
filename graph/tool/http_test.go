package tool

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPTool(t *testing.T) {
	ctx := context.Background()

	t.Run("get returns status and body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("method = %s, want GET", r.Method)
			}
			_, _ = w.Write([]byte("hello"))
		}))
		defer srv.Close()

		h := NewHTTPTool()
		result, err := h.Call(ctx, map[string]any{"url": srv.URL})
		if err != nil {
			t.Fatalf("Call() error = %v", err)
		}
		if result["status_code"] != 200 || result["body"] != "hello" {
			t.Errorf("result = %v", result)
		}
		if result["truncated"] != false {
			t.Errorf("truncated = %v, want false", result["truncated"])
		}
	})

	t.Run("post sends body and headers", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"q":1}` {
				t.Errorf("body = %s", body)
			}
			if r.Header.Get("X-Token") != "abc" {
				t.Errorf("X-Token = %q", r.Header.Get("X-Token"))
			}
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		h := NewHTTPTool()
		result, err := h.Call(ctx, map[string]any{
			"url":     srv.URL,
			"method":  "post",
			"body":    `{"q":1}`,
			"headers": map[string]any{"X-Token": "abc"},
		})
		if err != nil {
			t.Fatalf("Call() error = %v", err)
		}
		if result["status_code"] != http.StatusCreated {
			t.Errorf("status = %v", result["status_code"])
		}
	})

	t.Run("large bodies are truncated", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 100)))
		}))
		defer srv.Close()

		h := NewHTTPTool()
		h.MaxBodyBytes = 10
		result, err := h.Call(ctx, map[string]any{"url": srv.URL})
		if err != nil {
			t.Fatalf("Call() error = %v", err)
		}
		if len(result["body"].(string)) != 10 {
			t.Errorf("body length = %d, want 10", len(result["body"].(string)))
		}
		if result["truncated"] != true {
			t.Error("truncated flag not set")
		}
	})

	t.Run("rejects missing url and bad method", func(t *testing.T) {
		h := NewHTTPTool()
		if _, err := h.Call(ctx, map[string]any{}); err == nil {
			t.Error("missing url accepted")
		}
		if _, err := h.Call(ctx, map[string]any{"url": "http://example.com", "method": "DELETE"}); err == nil {
			t.Error("unsupported method accepted")
		}
	})
}
