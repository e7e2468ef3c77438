package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidPayload     = fmt.Errorf("invalid payload")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
	ErrMissingToken       = fmt.Errorf("authorization token is missing")

	ErrMalformedFrame   = fmt.Errorf("malformed frame")
	ErrUnknownEventType = fmt.Errorf("unknown event type")
	ErrRateLimited      = fmt.Errorf("rate limit exceeded")
	ErrSinkFull         = fmt.Errorf("connection send buffer is full")
	ErrConnectionClosed = fmt.Errorf("connection is closed")
)

// MapToHTTPStatus translates domain errors into HTTP status codes at the API boundary.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrInvalidCredentials),
		stderrors.Is(err, ErrInvalidToken),
		stderrors.Is(err, ErrMissingToken):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrInvalidPassword),
		stderrors.Is(err, ErrInvalidPayload):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case stderrors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
