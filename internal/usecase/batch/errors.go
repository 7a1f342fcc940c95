package batch

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidKind       = errors.New("invalid asset kind")
	ErrEmptyUpload       = errors.New("empty upload")
	ErrFileTooLarge      = errors.New("file too large")
	ErrInvalidStyle      = errors.New("invalid caption style")
	ErrStorageError      = errors.New("storage error")
	ErrDatabaseError     = errors.New("database error")
	ErrMessageQueueError = errors.New("message queue error")
)
