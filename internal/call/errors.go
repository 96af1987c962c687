package call

import (
	"errors"
	"fmt"

	apperrors "companion-call-demo/backend/pkg/errors"
)

var (
	// ErrSessionEnded is returned by operations on an ended or failed session
	ErrSessionEnded = errors.New("call session has ended")
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("call session already started")
)

// MediaAcquisitionError means the local camera or microphone could not be opened
type MediaAcquisitionError struct {
	Err error
}

func (e *MediaAcquisitionError) Error() string {
	return fmt.Sprintf("media acquisition failed: %v", e.Err)
}

func (e *MediaAcquisitionError) Unwrap() error { return e.Err }

// AppError maps the failure onto the API envelope
func (e *MediaAcquisitionError) AppError() *apperrors.AppError {
	return apperrors.NewServiceUnavailableError(apperrors.CodeMediaAcquisition,
		"Could not access camera or microphone").WithDetails(e.Err.Error())
}

// ConnectionError means the peer connection could not be built
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("peer connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AppError maps the failure onto the API envelope
func (e *ConnectionError) AppError() *apperrors.AppError {
	return apperrors.NewError(502, apperrors.CodeConnection,
		"Could not establish the call connection").WithDetails(e.Err.Error())
}
