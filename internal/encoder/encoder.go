package encoder

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"video-batcher/internal/domain"
)

var (
	ErrEncode   = errors.New("encode failed")
	ErrProbe    = errors.New("probe failed")
	ErrEmptyJob = errors.New("job has no frames")
)

// Frame is one still shown for Duration, in concat order.
type Frame struct {
	Path     string
	Duration time.Duration
}

type Params struct {
	Width       int
	Height      int
	FPS         float64
	VideoCodec  string
	AudioCodec  string
	Preset      string
	Threads     int
	PixFmt      string
	BitrateKbps int
	Grading     domain.Grading
}

// Job describes a single video: hard cuts between Frames, the caption layer held
// for the whole duration, and optional audio cut at AudioDuration. Scratch files
// go to WorkDir, or next to Output when it is empty.
type Job struct {
	Frames        []Frame
	CaptionPath   string
	AudioPath     string
	AudioDuration time.Duration
	Output        string
	WorkDir       string
	Params        Params
}

func (j Job) Duration() time.Duration {
	var total time.Duration
	for _, f := range j.Frames {
		total += f.Duration
	}
	return total
}

type Encoder interface {
	Encode(ctx context.Context, job Job) error
	Probe(ctx context.Context, path string) (time.Duration, error)
}

// ApplyJitter perturbs size, frame rate and bitrate within the configured
// bounds. Size changes are kept even so yuv420p encoders accept them.
func ApplyJitter(p Params, j domain.Jitter, rng *rand.Rand) Params {
	if !j.Enabled || rng == nil {
		return p
	}

	if j.SizePx > 0 {
		steps := j.SizePx / 2
		if steps > 0 {
			p.Width += 2 * (rng.IntN(2*steps+1) - steps)
			p.Height += 2 * (rng.IntN(2*steps+1) - steps)
		}
	}

	if j.FPSDelta > 0 {
		p.FPS += (rng.Float64()*2 - 1) * j.FPSDelta
		p.FPS = max(1, float64(int(p.FPS*1000))/1000)
	}

	if j.BitrateKbps > 0 {
		p.BitrateKbps = j.BitrateKbps
		if j.BitrateSpan > 0 {
			p.BitrateKbps += rng.IntN(2*j.BitrateSpan+1) - j.BitrateSpan
		}
		p.BitrateKbps = max(100, p.BitrateKbps)
	}

	return p
}
