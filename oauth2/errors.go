package oauth2

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is one of the OAuth2 / OIDC protocol error codes returned to
// clients, as opposed to internal faults which surface as ErrServerError.
type ErrorCode string

const (
	ErrInvalidRequest          ErrorCode = "invalid_request"
	ErrUnauthorizedClient      ErrorCode = "unauthorized_client"
	ErrAccessDenied            ErrorCode = "access_denied"
	ErrUnsupportedResponseType ErrorCode = "unsupported_response_type"
	ErrInvalidClient           ErrorCode = "invalid_client"
	ErrInvalidGrant            ErrorCode = "invalid_grant"
	ErrInvalidScope            ErrorCode = "invalid_scope"
	ErrInvalidToken            ErrorCode = "invalid_token"
	ErrLoginRequired           ErrorCode = "login_required"
	ErrInteractionRequired     ErrorCode = "interaction_required"
	ErrServerError             ErrorCode = "server_error"
)

// Error is a protocol-level failure carrying the OAuth2 error code that the
// transport layer reports to the client, either as a JSON body or as redirect
// parameters.
type Error struct {
	Code        ErrorCode `json:"error"`
	Description string    `json:"error_description,omitempty"`
}

// NewError builds an *Error with a formatted description.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// HTTPStatus maps the error code to the HTTP status used at the boundary.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidToken, ErrInvalidClient:
		return http.StatusUnauthorized
	case ErrServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// AsError unwraps err into an *Error if one is present in its chain.
func AsError(err error) (*Error, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// CodeOf returns the protocol error code of err, or server_error when err is
// not a protocol-level failure.
func CodeOf(err error) ErrorCode {
	if oe, ok := AsError(err); ok {
		return oe.Code
	}
	return ErrServerError
}
