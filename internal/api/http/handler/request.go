package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/dtroode/heirkeeper-server/internal/api/http/response"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

const (
	maxBodySize      = 1 << 20
	maxAssetBodySize = 32 << 20
)

// decodeJSON reads one JSON object of at most limit bytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return model.NewErrValidation("request body too large")
		case errors.Is(err, io.EOF):
			return model.NewErrValidation("request body is empty")
		default:
			return model.NewErrValidation("invalid request body")
		}
	}
	if dec.More() {
		return model.NewErrValidation("request body must contain a single JSON object")
	}
	return nil
}

func principalFrom(w http.ResponseWriter, r *http.Request, cm model.ContextManager) (model.Principal, bool) {
	principal, ok := cm.GetPrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthenticated", "missing principal")
		return model.Principal{}, false
	}
	return principal, true
}

func requestMeta(r *http.Request) model.RequestMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return model.RequestMeta{IPAddress: ip, UserAgent: r.UserAgent()}
}

// limitParam parses the optional limit query parameter. Zero means the service default.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, model.NewErrValidation("limit must be a non-negative integer")
	}
	return limit, nil
}
