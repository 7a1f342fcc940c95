package operations

import "errors"

var (
	ErrDecode        = errors.New("image decode failed")
	ErrUnknownPolicy = errors.New("unknown fit policy")
	ErrInvalidColor  = errors.New("invalid color")
	ErrFontLoad      = errors.New("font load failed")
)
