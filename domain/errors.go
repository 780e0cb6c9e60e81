package domain

import "errors"

var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrTitleRequired        = errors.New("title is required")
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrTaskMismatch         = errors.New("task is not at the source position")
	ErrConfirmationRequired = errors.New("confirmation required")
)
