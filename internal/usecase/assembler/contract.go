package assembler

import (
	"context"
	"time"

	"video-batcher/internal/encoder"
)

type videoEncoder interface {
	Encode(ctx context.Context, job encoder.Job) error
	Probe(ctx context.Context, path string) (time.Duration, error)
}
