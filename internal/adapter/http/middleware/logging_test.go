package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"success", http.StatusOK, "info"},
		{"client error", http.StatusUnprocessableEntity, "warn"},
		{"server error", http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := chi.NewRouter()
			r.Use(chimiddleware.RequestID)
			r.Use(NewLoggingMiddleware(zerolog.New(&buf)).Wrap)
			r.Post("/api/v1/events/{id}/categorize", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{}`))
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/events/ev-1/categorize", nil)
			r.ServeHTTP(httptest.NewRecorder(), req)

			var line map[string]any
			if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
				t.Fatalf("expected one json log line, got %q: %v", buf.String(), err)
			}
			if line["level"] != tt.level {
				t.Fatalf("expected level %s, got %v", tt.level, line["level"])
			}
			if line["route"] != "/api/v1/events/{id}/categorize" {
				t.Fatalf("expected route pattern, got %v", line["route"])
			}
			if line["status"] != float64(tt.status) || line["bytes"] != float64(2) {
				t.Fatalf("unexpected status/bytes: %v %v", line["status"], line["bytes"])
			}
			if line["request_id"] == "" {
				t.Fatalf("expected request id")
			}
		})
	}
}

func TestLoggingMiddlewareMarksReplays(t *testing.T) {
	var buf bytes.Buffer
	h := NewLoggingMiddleware(zerolog.New(&buf)).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(replayHeader, "true")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/entries", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("bad log line: %v", err)
	}
	if line["replayed"] != true {
		t.Fatalf("expected replayed flag, got %v", line)
	}
}
