package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"video-batcher/internal/domain"
	repoBatch "video-batcher/internal/repository/batch"
	"video-batcher/internal/usecase/assembler"
	"video-batcher/internal/usecase/planner"

	"github.com/wb-go/wbf/zlog"
)

// Runner executes one queued batch end to end: load media, plan, render video
// after video, package, upload parts, record status.
type Runner struct {
	repo      batchRepository
	files     fileRepository
	planner   batchPlanner
	assembler videoAssembler
	packager  videoPackager
	tempDir   string
	logger    *zlog.Zerolog
}

func NewRunner(repo batchRepository, files fileRepository, planner batchPlanner, assembler videoAssembler, packager videoPackager, tempDir string, logger *zlog.Zerolog) *Runner {
	return &Runner{
		repo:      repo,
		files:     files,
		planner:   planner,
		assembler: assembler,
		packager:  packager,
		tempDir:   tempDir,
		logger:    logger,
	}
}

// Process returns an error only when the batch was interrupted by ctx and
// should be delivered again. Every other outcome is recorded on the batch
// itself, including a batch the user deleted mid-run, which is dropped.
func (r *Runner) Process(ctx context.Context, task *domain.BatchTask) (err error) {
	log := r.logger.With().Str("batch_id", task.ID).Str("session_id", task.SessionID).Logger()

	defer func() {
		if p := recover(); p != nil {
			r.fail(ctx, task.ID, fmt.Errorf("panic while processing batch: %v", p))
			err = nil
		}
	}()

	if _, err := r.repo.GetByID(ctx, task.ID); err != nil {
		if errors.Is(err, repoBatch.ErrBatchNotFound) {
			log.Warn().Msg("Batch no longer exists, dropping task")
			return nil
		}
		return r.abort(ctx, task.ID, fmt.Errorf("failed to load batch: %w", err))
	}

	assets, err := r.loadAssets(ctx, task)
	if err != nil {
		return r.abort(ctx, task.ID, err)
	}

	plan, err := r.planner.Plan(planner.Input{Covers: assets.Covers, Photos: assets.Photos, Music: assets.Music}, task.Settings)
	if err != nil {
		return r.abort(ctx, task.ID, err)
	}

	if err := r.repo.StartProcessing(ctx, task.ID, len(plan.Videos), plan.Seed); err != nil {
		if errors.Is(err, repoBatch.ErrBatchNotFound) {
			log.Warn().Msg("Batch deleted before rendering, dropping task")
			return nil
		}
		return r.abort(ctx, task.ID, fmt.Errorf("failed to mark batch processing: %w", err))
	}

	log.Info().Int("videos", len(plan.Videos)).Uint64("seed", plan.Seed).Msg("Batch planned")

	workDir, err := os.MkdirTemp(r.tempDir, "batch-*")
	if err != nil {
		return r.abort(ctx, task.ID, fmt.Errorf("failed to create work dir: %w", err))
	}
	defer os.RemoveAll(workDir)

	// A delete from the API shows up as ErrBatchNotFound on the guarded
	// progress update; it stops the remaining videos.
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	var (
		rendered, failed int
		deleted          bool
	)
	progress := func(s domain.VideoStatus) {
		if s.State == domain.VideoRendered {
			rendered++
		} else {
			failed++
		}
		if err := r.repo.UpdateProgress(ctx, task.ID, rendered, failed); err != nil {
			if errors.Is(err, repoBatch.ErrBatchNotFound) {
				deleted = true
				stopRun()
				return
			}
			log.Error().Err(err).Msg("Failed to update progress")
		}
		if err := r.repo.SaveVideoStatus(ctx, &s); err != nil {
			log.Error().Err(err).Int("video", s.Index).Msg("Failed to save video status")
		}
		log.Info().
			Int("video", s.Index).
			Str("state", string(s.State)).
			Int("done", rendered+failed).
			Int("total", len(plan.Videos)).
			Msg("Batch progress")
	}

	videos, _, err := r.assembler.Run(runCtx, plan.Videos, assembler.Input{
		BatchID:      task.ID,
		SessionID:    task.SessionID,
		Seed:         plan.Seed,
		Style:        task.Style,
		DecodePolicy: task.Settings.DecodePolicy,
		Grading:      task.Settings.Grading,
		Jitter:       task.Settings.Jitter,
		Assets:       assets,
		OutDir:       workDir,
	}, progress)
	if deleted {
		log.Warn().Int("rendered", rendered).Msg("Batch deleted while rendering, discarding output")
		return nil
	}
	if err != nil {
		return r.abort(ctx, task.ID, err)
	}

	if len(videos) == 0 {
		r.fail(ctx, task.ID, errors.New("every video in the batch failed"))
		return nil
	}

	if _, err := r.repo.GetByID(ctx, task.ID); errors.Is(err, repoBatch.ErrBatchNotFound) {
		log.Warn().Msg("Batch deleted before upload, discarding output")
		return nil
	}

	if err := r.storeArchives(ctx, task, videos, workDir); err != nil {
		if errors.Is(err, repoBatch.ErrBatchNotFound) {
			r.discardArchives(ctx, task.ID)
			return nil
		}
		return r.abort(ctx, task.ID, err)
	}

	status := domain.BatchCompleted
	if failed > 0 {
		status = domain.BatchCompletedWithErrors
	}
	if err := r.repo.UpdateStatus(ctx, task.ID, status, ""); err != nil {
		if errors.Is(err, repoBatch.ErrBatchNotFound) {
			r.discardArchives(ctx, task.ID)
			return nil
		}
		log.Error().Err(err).Str("status", string(status)).Msg("Failed to update status")
	}

	log.Info().
		Str("status", string(status)).
		Int("rendered", rendered).
		Int("failed", failed).
		Msg("Batch finished")

	return nil
}

func (r *Runner) loadAssets(ctx context.Context, task *domain.BatchTask) (assembler.Assets, error) {
	var (
		out assembler.Assets
		err error
	)
	if out.Covers, err = r.load(ctx, task.Covers); err != nil {
		return out, err
	}
	if out.Photos, err = r.load(ctx, task.Photos); err != nil {
		return out, err
	}
	if out.Music, err = r.load(ctx, task.Music); err != nil {
		return out, err
	}
	return out, nil
}

func (r *Runner) load(ctx context.Context, refs []domain.MediaAsset) ([]domain.MediaAsset, error) {
	out := make([]domain.MediaAsset, len(refs))
	for i, a := range refs {
		data, err := r.files.ReadAll(ctx, a.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s %s: %w", a.Kind, a.Name, err)
		}
		a.Data = data
		out[i] = a
	}
	return out, nil
}

func (r *Runner) storeArchives(ctx context.Context, task *domain.BatchTask, videos []domain.RenderedVideo, workDir string) error {
	parts, err := r.packager.Package(ctx, videos, task.Settings.ChunkSize, workDir, task.SessionID)
	if err != nil {
		return fmt.Errorf("failed to package videos: %w", err)
	}

	for i := range parts {
		part := &parts[i]
		local := part.Path
		key := batchPrefix(task.ID) + part.Name

		size, err := r.files.PutFile(ctx, key, local, "application/zip")
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", part.Name, err)
		}
		_ = os.Remove(local)

		part.BatchID = task.ID
		part.Path = key
		part.Size = size
		if part.CreatedAt.IsZero() {
			part.CreatedAt = time.Now()
		}
		if err := r.repo.SaveArchivePart(ctx, part); err != nil {
			return fmt.Errorf("failed to save archive part: %w", err)
		}
	}

	return nil
}

// abort records err on the batch and returns nil, unless ctx itself ended,
// in which case the batch is left for redelivery.
func (r *Runner) abort(ctx context.Context, id string, err error) error {
	if ctx.Err() != nil {
		r.updateStatus(context.WithoutCancel(ctx), id, domain.BatchFailed, "interrupted")
		return ctx.Err()
	}
	r.fail(ctx, id, err)
	return nil
}

// discardArchives removes parts uploaded for a batch that was deleted meanwhile.
func (r *Runner) discardArchives(ctx context.Context, id string) {
	r.logger.Warn().Str("batch_id", id).Msg("Batch deleted during upload, removing parts")
	if err := r.files.DeletePrefix(ctx, batchPrefix(id)); err != nil {
		r.logger.Error().Err(err).Str("batch_id", id).Msg("Failed to remove parts of deleted batch")
	}
	if err := r.repo.DeleteArchiveParts(ctx, id); err != nil {
		r.logger.Error().Err(err).Str("batch_id", id).Msg("Failed to remove part rows of deleted batch")
	}
}

func (r *Runner) fail(ctx context.Context, id string, err error) {
	r.logger.Error().Err(err).Str("batch_id", id).Msg("Batch failed")
	r.updateStatus(ctx, id, domain.BatchFailed, err.Error())
}

func (r *Runner) updateStatus(ctx context.Context, id string, status domain.BatchStatus, msg string) {
	if err := r.repo.UpdateStatus(ctx, id, status, msg); err != nil {
		r.logger.Error().Err(err).Str("batch_id", id).Str("status", string(status)).Msg("Failed to update status")
	}
}
