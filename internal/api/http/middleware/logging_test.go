package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"github.com/dtroode/heirkeeper-server/internal/logger"
)

func TestLogging_Handle(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantCode  int
		wantLevel string
		wantMsg   string
	}{
		{
			name: "success path",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("ok"))
			},
			wantCode:  http.StatusOK,
			wantLevel: "level=INFO",
			wantMsg:   "HTTP request completed",
		},
		{
			name: "client error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			wantCode:  http.StatusBadRequest,
			wantLevel: "level=INFO",
			wantMsg:   "HTTP request completed",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantCode:  http.StatusInternalServerError,
			wantLevel: "level=ERROR",
			wantMsg:   "HTTP request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			lg := NewLogging(logger.NewWithWriter(&buf, 0))

			req := httptest.NewRequest(http.MethodPost, "/dashboard/vault/challenge", nil)
			rec := httptest.NewRecorder()

			chimiddleware.RequestID(lg.Handle(tt.handler)).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			out := buf.String()
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, tt.wantMsg)
			assert.Contains(t, out, "method=POST")
			assert.Contains(t, out, "path=/dashboard/vault/challenge")
			assert.Contains(t, out, "request_id=")
			assert.Contains(t, out, "remote_addr=192.0.2.1:1234")
			assert.NotContains(t, out, "client_ip=")
		})
	}
}

func TestLogging_Handle_RewrittenClientIP(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLogging(logger.NewWithWriter(&buf, 0))

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec := httptest.NewRecorder()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	lg.Handle(chimiddleware.RealIP(ok)).ServeHTTP(rec, req)

	out := buf.String()
	assert.Contains(t, out, "remote_addr=192.0.2.1:1234")
	assert.Contains(t, out, "client_ip=203.0.113.7")
}
