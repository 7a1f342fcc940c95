package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	kafka_impl "video-batcher/internal/broker/kafka"
	"video-batcher/internal/config"
	"video-batcher/internal/domain"
	batch_h "video-batcher/internal/http-server/handler/batch"
	"video-batcher/internal/http-server/router"
	minio_repo "video-batcher/internal/repository/batch/cloud/minio"
	postgres_repo "video-batcher/internal/repository/batch/db/postgres"
	"video-batcher/internal/usecase/assembler/operations"
	batch_uc "video-batcher/internal/usecase/batch"
	"video-batcher/internal/usecase/planner"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

type App struct {
	cfg      *config.Config
	server   *http.Server
	logger   *zlog.Zerolog
	db       *dbpg.DB
	producer *kafka_impl.ProducerClient
}

func NewApp(cfg *config.Config, logger *zlog.Zerolog) (*App, error) {
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
	producer := kafka_impl.NewProducerClient(cfg)

	batchUsecase := batch_uc.NewBatchUsecase(
		batch_uc.NewSessionStore(),
		batchRepo,
		fileRepo,
		producer,
		planner.NewPlanner(cfg.Render.MinPhotos, cfg.Render.DefaultCaption),
		operations.NewCaptionRenderer(operations.NewFontLoader()),
		batch_uc.Options{
			Canvas:          domain.Canvas{Width: cfg.Render.Width, Height: cfg.Render.Height},
			MaxUploadSize:   cfg.Server.MaxUploadSize,
			ChunkSize:       cfg.Render.ChunkSize,
			CoverHoldFactor: cfg.Render.CoverHoldFactor,
			FontPath:        cfg.Render.FontPath,
		},
		logger,
		retries,
	)

	batchHandler := batch_h.NewBatchHandler(batchUsecase, cfg.Server.MaxRequestSize, logger)

	h := &router.Handler{
		BatchHandler: batchHandler,
	}

	mux := router.SetupRouter(h)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		cfg:      cfg,
		server:   server,
		logger:   logger,
		db:       db,
		producer: producer,
	}, nil
}

// Run serves until SIGINT/SIGTERM, then drains in-flight requests.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info().Str("addr", a.server.Addr).Msg("Starting API server")

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
		a.logger.Error().Err(runErr).Msg("Server error")
	case <-ctx.Done():
		a.logger.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.close(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("Shutdown finished with errors")
		return errors.Join(runErr, err)
	}

	a.logger.Info().Msg("Server stopped gracefully")
	return runErr
}

func (a *App) close(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("kafka producer: %w", err))
	}
	if a.db != nil && a.db.Master != nil {
		if err := a.db.Master.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}
