package dto

import (
	"time"

	"video-batcher/internal/domain"
)

// SettingsRequest is BatchSettings with durations in human units.
type SettingsRequest struct {
	Strategy         string         `json:"strategy" validate:"omitempty,oneof=one_per_cover fixed_count_cycling"`
	RequestedCount   int            `json:"requested_count" validate:"min=0,max=500"`
	MinDurationSec   float64        `json:"min_duration_sec" validate:"gt=0,max=600"`
	MaxDurationSec   float64        `json:"max_duration_sec" validate:"gtefield=MinDurationSec,max=600"`
	FrameDurationsMs []int          `json:"frame_durations_ms" validate:"min=1,max=16,dive,gt=0,max=60000"`
	CoverHoldFactor  int            `json:"cover_hold_factor" validate:"min=0,max=20"`
	Policy           string         `json:"policy" validate:"omitempty,oneof=fill_crop side_fit"`
	Captions         []string       `json:"captions"`
	ChunkSize        int            `json:"chunk_size" validate:"min=0,max=1000"`
	Seed             uint64         `json:"seed"`
	DecodePolicy     string         `json:"decode_policy" validate:"omitempty,oneof=substitute skip abort"`
	Grading          domain.Grading `json:"grading"`
	Jitter           domain.Jitter  `json:"jitter"`
}

func DefaultSettingsRequest() SettingsRequest {
	d := domain.DefaultBatchSettings()
	frames := make([]int, 0, len(d.FrameDurations))
	for _, f := range d.FrameDurations {
		frames = append(frames, int(f/time.Millisecond))
	}
	return SettingsRequest{
		Strategy:         string(d.Strategy),
		RequestedCount:   d.RequestedCount,
		MinDurationSec:   d.MinDuration.Seconds(),
		MaxDurationSec:   d.MaxDuration.Seconds(),
		FrameDurationsMs: frames,
		Policy:           string(d.Policy),
		DecodePolicy:     string(d.DecodePolicy),
	}
}

func (s SettingsRequest) ToDomain() domain.BatchSettings {
	frames := make([]time.Duration, 0, len(s.FrameDurationsMs))
	for _, ms := range s.FrameDurationsMs {
		frames = append(frames, time.Duration(ms)*time.Millisecond)
	}
	return domain.BatchSettings{
		Strategy:        domain.PlanStrategy(s.Strategy),
		RequestedCount:  s.RequestedCount,
		MinDuration:     seconds(s.MinDurationSec),
		MaxDuration:     seconds(s.MaxDurationSec),
		FrameDurations:  frames,
		CoverHoldFactor: s.CoverHoldFactor,
		Policy:          domain.FitPolicy(s.Policy),
		Captions:        s.Captions,
		ChunkSize:       s.ChunkSize,
		Seed:            s.Seed,
		DecodePolicy:    domain.DecodePolicy(s.DecodePolicy),
		Grading:         s.Grading,
		Jitter:          s.Jitter,
	}
}

type StartBatchRequest struct {
	Style    domain.StyleConfig `json:"style"`
	Settings SettingsRequest    `json:"settings"`
}

// NewStartBatchRequest returns a request pre-filled with defaults so a partial
// JSON body only overrides what it names.
func NewStartBatchRequest() StartBatchRequest {
	return StartBatchRequest{Style: domain.DefaultStyle(), Settings: DefaultSettingsRequest()}
}

type PreviewRequest struct {
	Text       string             `json:"text" validate:"max=500"`
	Style      domain.StyleConfig `json:"style"`
	Background string             `json:"background" validate:"omitempty,hexcolor"`
}

func NewPreviewRequest() PreviewRequest {
	return PreviewRequest{Style: domain.DefaultStyle()}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
