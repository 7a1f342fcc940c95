package domain

import "time"

type BatchStatus string

const (
	BatchQueued              BatchStatus = "queued"
	BatchProcessing          BatchStatus = "processing"
	BatchCompleted           BatchStatus = "completed"
	BatchCompletedWithErrors BatchStatus = "completed_with_errors"
	BatchFailed              BatchStatus = "failed"
	BatchDeleted             BatchStatus = "deleted"
)

type VideoState string

const (
	VideoRendered VideoState = "rendered"
	VideoFailed   VideoState = "failed"
)

type Batch struct {
	ID        string
	SessionID string
	Status    BatchStatus
	Planned   int
	Rendered  int
	Failed    int
	Seed      uint64
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VideoStatus is the per-video line of the batch report.
type VideoStatus struct {
	BatchID           string
	Index             int
	Name              string
	State             VideoState
	Duration          time.Duration
	Frames            int
	SubstitutedFrames int
	SkippedFrames     int
	FontSize          int
	Error             string
	CreatedAt         time.Time
}

type ArchivePart struct {
	BatchID   string
	Part      int
	Name      string
	Path      string
	Size      int64
	Videos    []string
	CreatedAt time.Time
}

// RenderedVideo is a file produced by the encoder, owned by the pipeline until
// packaging removes it.
type RenderedVideo struct {
	Index    int
	Name     string
	Path     string
	Duration time.Duration
}

// BatchTask is the queue payload for one batch generation run.
type BatchTask struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Covers    []MediaAsset  `json:"covers"`
	Photos    []MediaAsset  `json:"photos"`
	Music     []MediaAsset  `json:"music"`
	Style     StyleConfig   `json:"style"`
	Settings  BatchSettings `json:"settings"`
}
