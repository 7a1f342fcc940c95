package batch

import (
	"context"
	"io"

	"video-batcher/internal/domain"
	"video-batcher/internal/usecase/assembler/operations"
	batch_uc "video-batcher/internal/usecase/batch"
)

type batchUsecase interface {
	CreateSession() domain.Session
	GetSession(id string) (domain.Session, error)
	AddAssets(ctx context.Context, sessionID string, kind domain.AssetKind, uploads []batch_uc.Upload) (*batch_uc.AddResult, error)
	SetCaptions(sessionID, corpus string) ([]string, error)
	ResetSession(ctx context.Context, sessionID string) error
	StartBatch(ctx context.Context, sessionID string, style domain.StyleConfig, settings domain.BatchSettings) (*domain.Batch, error)
	GetBatch(ctx context.Context, id string) (*batch_uc.BatchReport, error)
	OpenArchive(ctx context.Context, batchID string, part int) (*domain.ArchivePart, io.ReadCloser, int64, error)
	DeleteBatch(ctx context.Context, id string) error
	Preview(text string, style domain.StyleConfig, background string) ([]byte, operations.RenderInfo, error)
}
