package assembler

import "errors"

var (
	ErrNoFrames     = errors.New("no frames left to encode")
	ErrAssetMissing = errors.New("planned asset not found")
	ErrDecodeAbort  = errors.New("frame decode failed")
)
