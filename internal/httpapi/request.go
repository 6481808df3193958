// internal/httpapi/request.go
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"librarium/internal/storage"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode reads a JSON body into dst and validates its struct tags.
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &RequestError{Status: http.StatusBadRequest, Code: CodeMalformedRequest, Message: "request body is empty"}
		}
		return &RequestError{
			Status:  http.StatusBadRequest,
			Code:    CodeMalformedRequest,
			Message: "request body is not valid JSON",
			Details: ToDetails(err),
		}
	}
	if err := validate.Struct(dst); err != nil {
		return &RequestError{
			Status:  http.StatusUnprocessableEntity,
			Code:    CodeValidationFailed,
			Message: "request validation failed",
			Details: ToDetails(err),
		}
	}
	return nil
}

// ToDetails converts decoding and validation errors into a field -> message map.
func ToDetails(err error) map[string]string {
	var se *json.SyntaxError
	var ute *json.UnmarshalTypeError
	switch {
	case errors.As(err, &ute):
		return map[string]string{ute.Field: "must be a " + ute.Type.String()}
	case errors.As(err, &se):
		return map[string]string{"payload": "invalid json"}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = formatFieldError(fe)
		}
		return out
	}
	return map[string]string{"payload": "invalid payload"}
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	}
	return "is invalid"
}

// PathID parses the named URL parameter as a positive int64.
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &RequestError{
			Status:  http.StatusBadRequest,
			Code:    CodeMalformedRequest,
			Message: fmt.Sprintf("invalid %s %q", name, raw),
		}
	}
	return id, nil
}

// PageFrom reads skip and limit query parameters and clamps them.
func PageFrom(r *http.Request) (storage.Page, error) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		return storage.Page{}, err
	}
	limit, err := queryInt(r, "limit", storage.DefaultLimit)
	if err != nil {
		return storage.Page{}, err
	}
	return storage.NewPage(skip, limit), nil
}

// QueryBool parses an optional boolean query parameter. A missing parameter yields nil.
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &RequestError{
			Status:  http.StatusBadRequest,
			Code:    CodeMalformedRequest,
			Message: fmt.Sprintf("invalid %s %q", name, raw),
		}
	}
	return &v, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &RequestError{
			Status:  http.StatusBadRequest,
			Code:    CodeMalformedRequest,
			Message: fmt.Sprintf("invalid %s %q", name, raw),
		}
	}
	return v, nil
}
