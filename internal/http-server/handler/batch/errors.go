package batch

import "errors"

var (
	ErrNoFiles     = errors.New("no files in request")
	ErrInvalidPart = errors.New("invalid archive part")
)
