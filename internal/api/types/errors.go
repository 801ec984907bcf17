package types

import (
	"context"
	"errors"
	"net/http"

	appErr "github.com/taskhall/engine/pkg/errors"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

var kindStatus = map[appErr.Kind]int{
	appErr.KindInvalid:         http.StatusUnprocessableEntity,
	appErr.KindNotFound:        http.StatusNotFound,
	appErr.KindConflict:        http.StatusConflict,
	appErr.KindForbidden:       http.StatusForbidden,
	appErr.KindUnauthenticated: http.StatusUnauthorized,
	appErr.KindUnavailable:     http.StatusServiceUnavailable,
	appErr.KindInternal:        http.StatusInternalServerError,
}

// FromAppError maps err to a status and body. Internal failures keep their
// cause out of the body.
func FromAppError(err error) (int, ErrorResponse) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable, ErrorResponse{Error: APIError{
			Code:    string(appErr.CodeDeadline),
			Message: "request timed out",
		}}
	}

	e, ok := appErr.As(err)
	if !ok {
		return http.StatusInternalServerError, ErrorResponse{Error: APIError{
			Code:    string(appErr.CodeInternal),
			Message: "internal server error",
		}}
	}

	kind := e.Code.Kind()
	body := APIError{Code: string(e.Code), Message: e.Message}
	if kind == appErr.KindInternal {
		body = APIError{Code: string(appErr.CodeInternal), Message: "internal server error"}
	}
	if fields, ok := e.Meta["fields"].(map[string]string); ok {
		body.Details = fields
	}
	return kindStatus[kind], ErrorResponse{Error: body}
}

// NewError builds a body for failures raised by the transport itself.
func NewError(code appErr.Code, message string) ErrorResponse {
	return ErrorResponse{Error: APIError{Code: string(code), Message: message}}
}
