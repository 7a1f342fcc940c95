package planner

import "errors"

var (
	ErrInsufficientAssets = errors.New("insufficient assets")
	ErrInvalidSettings    = errors.New("invalid batch settings")
	ErrEmptyPool          = errors.New("pool is empty")
)
