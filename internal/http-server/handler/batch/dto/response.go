package dto

import (
	"fmt"
	"time"

	"video-batcher/internal/domain"
	batch_uc "video-batcher/internal/usecase/batch"
)

type SessionResponse struct {
	ID        string    `json:"id"`
	Covers    int       `json:"covers"`
	Photos    int       `json:"photos"`
	Music     int       `json:"music"`
	Captions  int       `json:"captions"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewSessionResponse(s domain.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Covers:    len(s.Covers),
		Photos:    len(s.Photos),
		Music:     len(s.Music),
		Captions:  len(s.Captions),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

type AssetResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type UploadResponse struct {
	SessionID string          `json:"session_id"`
	Kind      string          `json:"kind"`
	Added     []AssetResponse `json:"added"`
	Skipped   []string        `json:"skipped"`
	Total     int             `json:"total"`
}

func NewUploadResponse(kind domain.AssetKind, res *batch_uc.AddResult) UploadResponse {
	resp := UploadResponse{
		SessionID: res.Session.ID,
		Kind:      string(kind),
		Added:     make([]AssetResponse, 0, len(res.Added)),
		Skipped:   res.Skipped,
		Total:     len(*res.Session.Pool(kind)),
	}
	if resp.Skipped == nil {
		resp.Skipped = []string{}
	}
	for _, a := range res.Added {
		resp.Added = append(resp.Added, AssetResponse{ID: a.ID, Name: a.Name, Size: a.Size})
	}
	return resp
}

type CaptionsResponse struct {
	Count    int      `json:"count"`
	Captions []string `json:"captions"`
}

type StartBatchResponse struct {
	BatchID string `json:"batch_id"`
	Status  string `json:"status"`
	Planned int    `json:"planned"`
}

type VideoResponse struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	State             string  `json:"state"`
	DurationSec       float64 `json:"duration_sec"`
	Frames            int     `json:"frames"`
	SubstitutedFrames int     `json:"substituted_frames"`
	SkippedFrames     int     `json:"skipped_frames"`
	FontSize          int     `json:"font_size"`
	Error             string  `json:"error,omitempty"`
}

type PartResponse struct {
	Part   int      `json:"part"`
	Name   string   `json:"name"`
	Size   int64    `json:"size"`
	Videos []string `json:"videos"`
	URL    string   `json:"url"`
}

type BatchResponse struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Status    string          `json:"status"`
	Planned   int             `json:"planned"`
	Rendered  int             `json:"rendered"`
	Failed    int             `json:"failed"`
	Seed      uint64          `json:"seed"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Videos    []VideoResponse `json:"videos"`
	Parts     []PartResponse  `json:"parts"`
}

func NewBatchResponse(r *batch_uc.BatchReport) BatchResponse {
	b := r.Batch
	resp := BatchResponse{
		ID:        b.ID,
		SessionID: b.SessionID,
		Status:    string(b.Status),
		Planned:   b.Planned,
		Rendered:  b.Rendered,
		Failed:    b.Failed,
		Seed:      b.Seed,
		Error:     b.Error,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
		Videos:    make([]VideoResponse, 0, len(r.Videos)),
		Parts:     make([]PartResponse, 0, len(r.Parts)),
	}
	for _, v := range r.Videos {
		resp.Videos = append(resp.Videos, VideoResponse{
			Index:             v.Index,
			Name:              v.Name,
			State:             string(v.State),
			DurationSec:       v.Duration.Seconds(),
			Frames:            v.Frames,
			SubstitutedFrames: v.SubstitutedFrames,
			SkippedFrames:     v.SkippedFrames,
			FontSize:          v.FontSize,
			Error:             v.Error,
		})
	}
	for _, p := range r.Parts {
		resp.Parts = append(resp.Parts, PartResponse{
			Part:   p.Part,
			Name:   p.Name,
			Size:   p.Size,
			Videos: p.Videos,
			URL:    fmt.Sprintf("/api/batches/%s/archives/%d", b.ID, p.Part),
		})
	}
	return resp
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
