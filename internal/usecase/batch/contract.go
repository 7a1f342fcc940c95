package batch

import (
	"context"
	"io"

	"video-batcher/internal/domain"
	"video-batcher/internal/usecase/assembler"
	"video-batcher/internal/usecase/planner"

	"github.com/wb-go/wbf/retry"
)

type batchRepository interface {
	Create(ctx context.Context, b *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	UpdateStatus(ctx context.Context, id string, status domain.BatchStatus, errMsg string) error
	StartProcessing(ctx context.Context, id string, planned int, seed uint64) error
	UpdateProgress(ctx context.Context, id string, rendered, failed int) error
	Delete(ctx context.Context, id string) error
	SaveVideoStatus(ctx context.Context, v *domain.VideoStatus) error
	ListVideoStatuses(ctx context.Context, batchID string) ([]domain.VideoStatus, error)
	SaveArchivePart(ctx context.Context, p *domain.ArchivePart) error
	ListArchiveParts(ctx context.Context, batchID string) ([]domain.ArchivePart, error)
	GetArchivePart(ctx context.Context, batchID string, part int) (*domain.ArchivePart, error)
	DeleteArchiveParts(ctx context.Context, batchID string) error
}

type fileRepository interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PutFile(ctx context.Context, key, path, contentType string) (int64, error)
	ReadAll(ctx context.Context, key string) ([]byte, error)
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type batchProducer interface {
	Send(ctx context.Context, strategy retry.Strategy, key, value []byte) error
}

type batchPlanner interface {
	Check(in planner.Input, settings domain.BatchSettings) error
	Plan(in planner.Input, settings domain.BatchSettings) (*planner.BatchPlan, error)
}

type videoAssembler interface {
	Run(ctx context.Context, plans []domain.VideoPlan, in assembler.Input, progress assembler.Progress) ([]domain.RenderedVideo, []domain.VideoStatus, error)
}

type videoPackager interface {
	Package(ctx context.Context, videos []domain.RenderedVideo, chunkSize int, dir, sessionID string) ([]domain.ArchivePart, error)
}
