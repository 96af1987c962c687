package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Mapper is implemented by domain errors that know their API representation.
type Mapper interface {
	AppError() *AppError
}

// As unwraps err looking for an *AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromError converts an error to an AppError.
// AppErrors are returned as-is, domain errors implementing Mapper are converted,
// anything else becomes an internal server error.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := As(err); ok {
		return appErr
	}

	var mapper Mapper
	if stderrors.As(err, &mapper) {
		return mapper.AppError().WithCause(err)
	}

	return NewInternalServerError(
		CodeInternal,
		fmt.Sprintf("An unexpected error occurred: %s", err.Error()),
	).WithCause(err)
}

// GetStatusCode extracts the HTTP status code, returns 500 for unknown errors
func GetStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return FromError(err).StatusCode
}

// GetErrorCode extracts the error code, returns "UNKNOWN_ERROR" for nil
func GetErrorCode(err error) string {
	if err == nil {
		return "UNKNOWN_ERROR"
	}
	return FromError(err).Code
}
