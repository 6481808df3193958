// internal/httpapi/respond.go
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"librarium/internal/domain"
)

// Error codes produced by the HTTP layer itself.
const (
	CodeMalformedRequest = "MALFORMED_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a single failure.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// RequestError is a client mistake detected before the request reaches a service.
type RequestError struct {
	Status  int
	Code    string
	Message string
	Details map[string]string
}

func (e *RequestError) Error() string {
	return e.Message
}

// StatusFor maps an error onto an HTTP status.
func StatusFor(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Status
	}
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindInvalidArgument:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func bodyFor(err error) ErrorBody {
	var re *RequestError
	if errors.As(err, &re) {
		return ErrorBody{Error: ErrorDetail{Code: re.Code, Message: re.Message, Details: re.Details}}
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return ErrorBody{Error: ErrorDetail{Code: de.Code, Message: de.Message}}
	}
	return ErrorBody{Error: ErrorDetail{Code: CodeInternal, Message: "internal server error"}}
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError renders err as an error envelope. Unexpected errors are logged with the
// request id and hidden from the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		LoggerFrom(r.Context()).WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}
	WriteJSON(w, status, bodyFor(err))
}
