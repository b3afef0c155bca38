package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/dtroode/heirkeeper-server/internal/api/http/response"
	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation, model.KindReplayRejected:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindStateViolation:
		return http.StatusForbidden
	case model.KindRateLimited:
		return http.StatusTooManyRequests
	case model.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleError maps a service error to its HTTP response. Internal errors are logged and never echoed.
func handleError(w http.ResponseWriter, r *http.Request, logger *logger.Logger, err error) {
	kind := model.KindOf(err)
	status := statusFor(kind)

	if status == http.StatusInternalServerError {
		logger.Error("Handler: request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Error(w, status, kind.String(), "internal server error")
		return
	}

	body := response.ErrorBody{Error: err.Error(), Reason: kind.String()}

	var de *model.Error
	if kind == model.KindRateLimited && errors.As(err, &de) && !de.RetryAfter.IsZero() {
		setRetryAfter(w, de.RetryAfter)
		body.RetryAfter = de.RetryAfter.UTC().Format(time.RFC3339)
	}

	response.JSON(w, status, body)
}

// setRetryAfter sets the Retry-After header in whole seconds, at least one.
func setRetryAfter(w http.ResponseWriter, until time.Time) {
	seconds := int(math.Ceil(time.Until(until).Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
}
