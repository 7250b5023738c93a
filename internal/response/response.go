// Package response writes JSON bodies and translates service errors into
// HTTP responses.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/model"
	"go.uber.org/zap"
)

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

// ErrorPayload describes a failed request.
type ErrorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error converts a service error into a JSON error response. Errors that
// are not *model.Error are reported as internal errors without details.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	payload := ErrorPayload{
		Code:    model.CodeInternal,
		Message: "internal error",
	}

	var e *model.Error
	if errors.As(err, &e) {
		status = StatusFromKind(e.Kind)
		payload.Code = e.Code
		payload.Message = e.Message
		payload.Meta = e.Meta
	}
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("Request failed", zap.Error(err))
	}

	payload.RequestID = w.Header().Get(logger.RequestIDHeader)
	JSON(w, status, ErrorBody{Error: payload})
}

// StatusFromKind maps error kinds to HTTP status codes.
func StatusFromKind(kind model.ErrKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindUnauthenticated:
		return http.StatusUnauthorized
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	case model.KindEmptyUpdate:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Decode reads a JSON request body into v. Unknown fields are rejected.
func Decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.ErrInvalidField("body", err.Error())
	}
	return nil
}
