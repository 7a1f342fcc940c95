package domain

import "time"

type FitPolicy string

const (
	FitFillCrop FitPolicy = "fill_crop"
	FitSideFit  FitPolicy = "side_fit"
)

type PlanStrategy string

const (
	StrategyOnePerCover       PlanStrategy = "one_per_cover"
	StrategyFixedCountCycling PlanStrategy = "fixed_count_cycling"
)

// DecodePolicy decides what the assembler does with a frame whose source image
// cannot be decoded.
type DecodePolicy string

const (
	DecodeSubstitute DecodePolicy = "substitute"
	DecodeSkip       DecodePolicy = "skip"
	DecodeAbort      DecodePolicy = "abort"
)

// VideoPlan is the resolved description of one output video.
type VideoPlan struct {
	Index          int           `json:"index"`
	Cover          AssetRef      `json:"cover"`
	Photos         []AssetRef    `json:"photos"`
	Caption        string        `json:"caption"`
	FrameDuration  time.Duration `json:"frame_duration"`
	CoverDuration  time.Duration `json:"cover_duration"`
	TargetDuration time.Duration `json:"target_duration"`
	Policy         FitPolicy     `json:"policy"`
	Audio          *AssetRef     `json:"audio,omitempty"`
	Refills        int           `json:"refills"`
}

func (p VideoPlan) Duration() time.Duration {
	return p.CoverDuration + time.Duration(len(p.Photos))*p.FrameDuration
}

func (p VideoPlan) FrameCount() int {
	return len(p.Photos) + 1
}

// Grading is the single brightness/gamma pass applied at encode time.
// Zero value is a no-op.
type Grading struct {
	Brightness float64 `json:"brightness" validate:"min=-1,max=1"`
	Gamma      float64 `json:"gamma" validate:"min=0,max=10"`
}

func (g Grading) IsZero() bool {
	return g.Brightness == 0 && (g.Gamma == 0 || g.Gamma == 1)
}

// Jitter randomizes encode parameters per video. Disabled unless requested.
type Jitter struct {
	Enabled     bool    `json:"enabled"`
	SizePx      int     `json:"size_px" validate:"min=0,max=16"`
	FPSDelta    float64 `json:"fps_delta" validate:"min=0,max=5"`
	BitrateKbps int     `json:"bitrate_kbps" validate:"min=0"`
	BitrateSpan int     `json:"bitrate_span_kbps" validate:"min=0"`
}

type BatchSettings struct {
	Strategy        PlanStrategy    `json:"strategy" validate:"required,oneof=one_per_cover fixed_count_cycling"`
	RequestedCount  int             `json:"requested_count" validate:"min=0,max=500"`
	MinDuration     time.Duration   `json:"min_duration"`
	MaxDuration     time.Duration   `json:"max_duration"`
	FrameDurations  []time.Duration `json:"frame_durations"`
	CoverHoldFactor int             `json:"cover_hold_factor" validate:"min=0,max=20"`
	Policy          FitPolicy       `json:"policy" validate:"omitempty,oneof=fill_crop side_fit"`
	Captions        []string        `json:"captions"`
	ChunkSize       int             `json:"chunk_size" validate:"min=0"`
	Seed            uint64          `json:"seed"`
	DecodePolicy    DecodePolicy    `json:"decode_policy" validate:"omitempty,oneof=substitute skip abort"`
	Grading         Grading         `json:"grading"`
	Jitter          Jitter          `json:"jitter"`
}

func DefaultBatchSettings() BatchSettings {
	return BatchSettings{
		Strategy:        StrategyFixedCountCycling,
		RequestedCount:  5,
		MinDuration:     8 * time.Second,
		MaxDuration:     10 * time.Second,
		FrameDurations:  []time.Duration{150 * time.Millisecond},
		CoverHoldFactor: 3,
		Policy:          FitSideFit,
		ChunkSize:       70,
		DecodePolicy:    DecodeSubstitute,
	}
}
