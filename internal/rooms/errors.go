package rooms

import (
	"fmt"

	apperrors "companion-call-demo/backend/pkg/errors"
)

// RoomInUseError means another session already owns the room
type RoomInUseError struct {
	RoomID string
}

func (e *RoomInUseError) Error() string {
	return fmt.Sprintf("room %s is already in use", e.RoomID)
}

func (e *RoomInUseError) AppError() *apperrors.AppError {
	return apperrors.NewConflictError(apperrors.CodeRoomInUse, "Room is already in use").
		WithDetails(map[string]string{"roomId": e.RoomID})
}

// CallNotFoundError means no live session exists for the room
type CallNotFoundError struct {
	RoomID string
}

func (e *CallNotFoundError) Error() string {
	return fmt.Sprintf("no active call in room %s", e.RoomID)
}

func (e *CallNotFoundError) AppError() *apperrors.AppError {
	return apperrors.NewNotFoundError(apperrors.CodeCallNotFound, "Call not found").
		WithDetails(map[string]string{"roomId": e.RoomID})
}

// InvalidCompanionError wraps a profile that failed validation
type InvalidCompanionError struct {
	Err error
}

func (e *InvalidCompanionError) Error() string { return e.Err.Error() }

func (e *InvalidCompanionError) Unwrap() error { return e.Err }

func (e *InvalidCompanionError) AppError() *apperrors.AppError {
	return apperrors.NewBadRequestError(apperrors.CodeInvalidCompanion, "Invalid companion profile").
		WithDetails(e.Err.Error())
}
