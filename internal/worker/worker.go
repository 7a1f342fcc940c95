package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"video-batcher/internal/broker"
	kafka_impl "video-batcher/internal/broker/kafka"
	"video-batcher/internal/config"
	"video-batcher/internal/domain"
	"video-batcher/internal/encoder"
	ffmpeg_enc "video-batcher/internal/encoder/ffmpeg"
	minio_repo "video-batcher/internal/repository/batch/cloud/minio"
	postgres_repo "video-batcher/internal/repository/batch/db/postgres"
	"video-batcher/internal/usecase/assembler"
	"video-batcher/internal/usecase/assembler/operations"
	batch_uc "video-batcher/internal/usecase/batch"
	"video-batcher/internal/usecase/packager"
	"video-batcher/internal/usecase/planner"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type taskRunner interface {
	Process(ctx context.Context, task *domain.BatchTask) error
}

// Worker consumes batch tasks. Each task runs to completion on one goroutine;
// concurrency only controls how many batches run side by side.
type Worker struct {
	logger      *zlog.Zerolog
	db          *dbpg.DB
	consumer    broker.Consumer
	runner      taskRunner
	retries     retry.Strategy
	concurrency int
	wg          sync.WaitGroup
}

func NewWorker(cfg *config.Config, logger *zlog.Zerolog) (*Worker, error) {
	retries := cfg.DefaultRetryStrategy()
	dbOpts := &dbpg.Options{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	}
	db, err := dbpg.New(cfg.DBDSN(), []string{}, dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	fileRepo, err := minio_repo.NewMinIORepository(cfg, retries, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file repository: %w", err)
	}
	batchRepo := postgres_repo.NewBatchRepository(db, retries)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := kafka_impl.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.BatchTopic, cfg.Kafka.Partitions); err != nil {
		logger.Warn().Err(err).Str("topic", cfg.Kafka.BatchTopic).Msg("Failed to ensure topic")
	}
	consumer := kafka_impl.NewConsumerClient(cfg)

	canvas := domain.Canvas{Width: cfg.Render.Width, Height: cfg.Render.Height}
	captions := operations.NewCaptionRenderer(operations.NewFontLoader())
	enc := ffmpeg_enc.NewEncoder(cfg.Render.FFmpegBinary, logger)

	asm := assembler.NewAssembler(operations.NewFitter(canvas), captions, enc, assembler.Options{
		Canvas: canvas,
		Params: encoder.Params{
			Width:      cfg.Render.Width,
			Height:     cfg.Render.Height,
			FPS:        cfg.Render.FPS,
			VideoCodec: cfg.Render.VideoCodec,
			AudioCodec: cfg.Render.AudioCodec,
			Preset:     cfg.Render.Preset,
			Threads:    cfg.Render.Threads,
		},
		TempDir:      cfg.Render.TempDir,
		OutputPrefix: cfg.Render.OutputPrefix,
	}, logger)

	runner := batch_uc.NewRunner(
		batchRepo,
		fileRepo,
		planner.NewPlanner(cfg.Render.MinPhotos, cfg.Render.DefaultCaption),
		asm,
		packager.NewPackager(cfg.Render.OutputPrefix, logger),
		cfg.Render.TempDir,
		logger,
	)

	logger.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.BatchTopic).
		Str("group", cfg.Kafka.GroupID).
		Int("concurrency", cfg.Worker.Concurrency).
		Str("ffmpeg", cfg.Render.FFmpegBinary).
		Msg("Worker configuration")

	w := newWorker(consumer, runner, retries, cfg.Worker.Concurrency, logger)
	w.db = db
	return w, nil
}

func newWorker(consumer broker.Consumer, runner taskRunner, retries retry.Strategy, concurrency int, logger *zlog.Zerolog) *Worker {
	return &Worker{
		logger:      logger,
		consumer:    consumer,
		runner:      runner,
		retries:     retries,
		concurrency: max(1, concurrency),
	}
}

func (w *Worker) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w.Serve(ctx)

	var errs []error
	if err := w.consumer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("kafka consumer: %w", err))
	}
	if w.db != nil && w.db.Master != nil {
		if err := w.db.Master.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	w.logger.Info().Msg("Worker stopped gracefully")
	return nil
}

// Serve blocks until ctx is done or the consumer stops delivering, then waits
// for in-flight batches.
func (w *Worker) Serve(ctx context.Context) {
	w.logger.Info().Int("concurrency", w.concurrency).Msg("Starting worker")

	messages := make(chan *broker.Message, w.concurrency)
	w.consumer.Start(ctx, messages, w.retries)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			w.processWorker(ctx, id, messages)
		}(i)
	}

	w.wg.Wait()
}

func (w *Worker) processWorker(ctx context.Context, id int, messages <-chan *broker.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			start := time.Now()
			if err := w.safeProcessMessage(ctx, msg); err != nil {
				// A later commit on this partition would skip an uncommitted
				// message, so only a stopping worker leaves one behind.
				if ctx.Err() != nil {
					w.logger.Warn().
						Err(err).
						Int("worker_id", id).
						Int64("offset", msg.Offset).
						Msg("Batch interrupted, left for redelivery")
					return
				}
				w.logger.Error().
					Err(err).
					Int("worker_id", id).
					Int64("offset", msg.Offset).
					Msg("Batch processing failed, committing")
			}

			if err := w.consumer.Commit(ctx, msg); err != nil {
				w.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit message")
				continue
			}

			w.logger.Info().
				Int("worker_id", id).
				Str("batch_id", string(msg.Key)).
				Dur("took", time.Since(start)).
				Msg("Batch message done")
		}
	}
}

// safeProcessMessage recovers panics into errors. Undecodable payloads are
// dropped without one.
func (w *Worker) safeProcessMessage(ctx context.Context, msg *broker.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing batch: %v", r)
		}
	}()

	var task domain.BatchTask
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		w.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("Dropping malformed batch task")
		return nil
	}
	if task.ID == "" {
		w.logger.Error().Int64("offset", msg.Offset).Msg("Dropping batch task without id")
		return nil
	}

	return w.runner.Process(ctx, &task)
}
