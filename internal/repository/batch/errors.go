package batch

import "errors"

var (
	ErrBatchNotFound   = errors.New("batch not found")
	ErrArchiveNotFound = errors.New("archive part not found")
	ErrFileNotFound    = errors.New("file not found")
	ErrStorageError    = errors.New("storage error")
)
