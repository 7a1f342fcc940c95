package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"time"

	"video-batcher/internal/domain"
	"video-batcher/internal/usecase/assembler/operations"
	"video-batcher/internal/usecase/planner"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type Options struct {
	Canvas          domain.Canvas
	MaxUploadSize   int64
	ChunkSize       int
	CoverHoldFactor int
	// FontPath replaces any client supplied font file.
	FontPath string
}

// Upload is one received file before it is stored.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

type AddResult struct {
	Added   []domain.MediaAsset
	Skipped []string
	Session domain.Session
}

// BatchReport is the user-facing view of a batch: totals, the per-video status
// list and the downloadable parts.
type BatchReport struct {
	Batch  domain.Batch
	Videos []domain.VideoStatus
	Parts  []domain.ArchivePart
}

type BatchUsecase struct {
	sessions *SessionStore
	repo     batchRepository
	files    fileRepository
	producer batchProducer
	planner  batchPlanner
	captions *operations.CaptionRenderer
	opts     Options
	logger   *zlog.Zerolog
	retries  retry.Strategy
}

func NewBatchUsecase(
	sessions *SessionStore,
	repo batchRepository,
	files fileRepository,
	producer batchProducer,
	planner batchPlanner,
	captions *operations.CaptionRenderer,
	opts Options,
	logger *zlog.Zerolog,
	retries retry.Strategy,
) *BatchUsecase {
	if opts.Canvas.Width == 0 || opts.Canvas.Height == 0 {
		opts.Canvas = domain.DefaultCanvas()
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = domain.DefaultMaxUploadSize
	}
	return &BatchUsecase{
		sessions: sessions,
		repo:     repo,
		files:    files,
		producer: producer,
		planner:  planner,
		captions: captions,
		opts:     opts,
		logger:   logger,
		retries:  retries,
	}
}

func (u *BatchUsecase) CreateSession() domain.Session {
	sess := u.sessions.Create()
	u.logger.Info().Str("session_id", sess.ID).Msg("Session created")
	return sess
}

func (u *BatchUsecase) GetSession(id string) (domain.Session, error) {
	return u.sessions.Get(id)
}

// AddAssets stores uploads of one kind. Files whose name already exists in
// that pool (or repeats within the upload) are skipped.
func (u *BatchUsecase) AddAssets(ctx context.Context, sessionID string, kind domain.AssetKind, uploads []Upload) (*AddResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}

	sess, err := u.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, a := range *sess.Pool(kind) {
		seen[a.Name] = true
	}

	result := &AddResult{}
	var pending []domain.MediaAsset
	for _, up := range uploads {
		name := filepath.Base(strings.TrimSpace(up.Name))
		if len(up.Data) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyUpload, name)
		}
		if int64(len(up.Data)) > u.opts.MaxUploadSize {
			return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, name)
		}
		if seen[name] {
			result.Skipped = append(result.Skipped, name)
			continue
		}
		seen[name] = true

		asset := domain.MediaAsset{
			ID:          uuid.New().String(),
			Name:        name,
			Kind:        kind,
			Size:        int64(len(up.Data)),
			ContentType: up.ContentType,
			CreatedAt:   time.Now(),
		}
		asset.Key = assetKey(sessionID, kind, asset.ID, name, up.ContentType)

		if err := u.files.Put(ctx, asset.Key, up.Data, up.ContentType); err != nil {
			u.removeKeys(ctx, pending)
			u.logger.Error().Err(err).Str("session_id", sessionID).Str("file", name).Msg("Failed to store upload")
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		pending = append(pending, asset)
	}

	var raced []domain.MediaAsset
	updated, err := u.sessions.Update(sessionID, func(s *domain.Session) error {
		pool := s.Pool(kind)
		names := make(map[string]bool, len(*pool))
		for _, a := range *pool {
			names[a.Name] = true
		}
		for _, a := range pending {
			if names[a.Name] {
				raced = append(raced, a)
				continue
			}
			*pool = append(*pool, a)
			result.Added = append(result.Added, a)
		}
		return nil
	})
	if err != nil {
		u.removeKeys(ctx, pending)
		return nil, err
	}

	u.removeKeys(ctx, raced)
	for _, a := range raced {
		result.Skipped = append(result.Skipped, a.Name)
	}
	result.Session = updated

	u.logger.Info().
		Str("session_id", sessionID).
		Str("kind", string(kind)).
		Int("added", len(result.Added)).
		Int("skipped", len(result.Skipped)).
		Msg("Assets uploaded")

	return result, nil
}

func (u *BatchUsecase) SetCaptions(sessionID, corpus string) ([]string, error) {
	captions := planner.ParseCorpus(corpus)
	sess, err := u.sessions.Update(sessionID, func(s *domain.Session) error {
		s.Captions = captions
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess.Captions, nil
}

// ResetSession forgets the session and removes its buffered uploads.
func (u *BatchUsecase) ResetSession(ctx context.Context, sessionID string) error {
	if _, err := u.sessions.Delete(sessionID); err != nil {
		return err
	}

	if err := u.files.DeletePrefix(ctx, sessionPrefix(sessionID)); err != nil {
		u.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to remove session files")
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	u.logger.Info().Str("session_id", sessionID).Msg("Session reset")
	return nil
}

// StartBatch checks every precondition, records the batch as queued and hands
// it to the worker queue. Nothing is rendered here.
func (u *BatchUsecase) StartBatch(ctx context.Context, sessionID string, style domain.StyleConfig, settings domain.BatchSettings) (*domain.Batch, error) {
	sess, err := u.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	style.FontPath = u.opts.FontPath
	if err := validateStyle(style); err != nil {
		return nil, err
	}

	settings = u.withDefaults(settings)
	if len(settings.Captions) == 0 {
		settings.Captions = sess.Captions
	}

	input := planner.Input{Covers: sess.Covers, Photos: sess.Photos, Music: sess.Music}
	if err := u.planner.Check(input, settings); err != nil {
		return nil, err
	}

	now := time.Now()
	b := &domain.Batch{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Status:    domain.BatchQueued,
		Seed:      settings.Seed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if settings.Strategy == domain.StrategyOnePerCover {
		b.Planned = len(sess.Covers)
	} else {
		b.Planned = settings.RequestedCount
	}

	if err := u.repo.Create(ctx, b); err != nil {
		u.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to save batch")
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	task := domain.BatchTask{
		ID:        b.ID,
		SessionID: sessionID,
		Covers:    sess.Covers,
		Photos:    sess.Photos,
		Music:     sess.Music,
		Style:     style,
		Settings:  settings,
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch task: %w", err)
	}

	if err := u.producer.Send(ctx, u.retries, []byte(b.ID), payload); err != nil {
		u.logger.Error().Err(err).Str("batch_id", b.ID).Msg("Failed to send batch task to Kafka")
		u.updateStatus(ctx, b.ID, domain.BatchFailed, "failed to enqueue batch")
		return nil, fmt.Errorf("%w: %v", ErrMessageQueueError, err)
	}

	u.logger.Info().
		Str("batch_id", b.ID).
		Str("session_id", sessionID).
		Str("strategy", string(settings.Strategy)).
		Int("planned", b.Planned).
		Msg("Batch queued")

	return b, nil
}

func (u *BatchUsecase) GetBatch(ctx context.Context, id string) (*BatchReport, error) {
	b, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	videos, err := u.repo.ListVideoStatuses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	parts, err := u.repo.ListArchiveParts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return &BatchReport{Batch: *b, Videos: videos, Parts: parts}, nil
}

// OpenArchive streams one archive part. The caller closes the reader.
func (u *BatchUsecase) OpenArchive(ctx context.Context, batchID string, part int) (*domain.ArchivePart, io.ReadCloser, int64, error) {
	if _, err := u.repo.GetByID(ctx, batchID); err != nil {
		return nil, nil, 0, fmt.Errorf("failed to get batch: %w", err)
	}

	p, err := u.repo.GetArchivePart(ctx, batchID, part)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to get archive part: %w", err)
	}

	reader, size, err := u.files.Open(ctx, p.Path)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to open archive part: %w", err)
	}

	return p, reader, size, nil
}

// DeleteBatch removes every stored archive part and marks the batch deleted.
func (u *BatchUsecase) DeleteBatch(ctx context.Context, id string) error {
	if _, err := u.repo.GetByID(ctx, id); err != nil {
		return fmt.Errorf("failed to get batch: %w", err)
	}

	if err := u.files.DeletePrefix(ctx, batchPrefix(id)); err != nil {
		u.logger.Error().Err(err).Str("batch_id", id).Msg("Failed to remove archive parts")
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	if err := u.repo.DeleteArchiveParts(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if err := u.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to mark batch deleted: %w", err)
	}

	u.logger.Info().Str("batch_id", id).Msg("Batch artifacts cleared")
	return nil
}

// Preview renders text over an opaque background and returns it as PNG.
func (u *BatchUsecase) Preview(text string, style domain.StyleConfig, background string) ([]byte, operations.RenderInfo, error) {
	if background == "" {
		background = "#808080"
	}
	style.FontPath = u.opts.FontPath

	img, info, err := u.captions.Preview(text, style, u.opts.Canvas, background)
	if err != nil {
		return nil, info, fmt.Errorf("%w: %v", ErrInvalidStyle, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, info, fmt.Errorf("failed to encode preview: %w", err)
	}

	return buf.Bytes(), info, nil
}

func (u *BatchUsecase) withDefaults(s domain.BatchSettings) domain.BatchSettings {
	if s.ChunkSize == 0 {
		s.ChunkSize = u.opts.ChunkSize
	}
	if s.CoverHoldFactor == 0 {
		s.CoverHoldFactor = u.opts.CoverHoldFactor
	}
	if s.DecodePolicy == "" {
		s.DecodePolicy = domain.DecodeSubstitute
	}
	return s
}

func (u *BatchUsecase) updateStatus(ctx context.Context, id string, status domain.BatchStatus, msg string) {
	if err := u.repo.UpdateStatus(ctx, id, status, msg); err != nil {
		u.logger.Error().Err(err).Str("batch_id", id).Str("status", string(status)).Msg("Failed to update status")
	}
}

func (u *BatchUsecase) removeKeys(ctx context.Context, assets []domain.MediaAsset) {
	for _, a := range assets {
		if err := u.files.Delete(ctx, a.Key); err != nil {
			u.logger.Warn().Err(err).Str("key", a.Key).Msg("Failed to remove stored upload")
		}
	}
}

func validateStyle(style domain.StyleConfig) error {
	colors := map[string]string{
		"text_color":   style.TextColor,
		"stroke_color": style.StrokeColor,
		"shadow_color": style.ShadowColor,
	}
	for field, value := range colors {
		if _, err := operations.ParseColor(value, 255); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidStyle, field, err)
		}
	}
	if style.MaxFontSize <= 0 {
		return fmt.Errorf("%w: max_font_size must be positive", ErrInvalidStyle)
	}
	return nil
}

func sessionPrefix(sessionID string) string {
	return domain.PathPrefixSessions + sessionID + "/"
}

func batchPrefix(batchID string) string {
	return domain.PathPrefixBatches + batchID + "/"
}

func assetKey(sessionID string, kind domain.AssetKind, id, name, contentType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" && kind != domain.KindMusic {
		ext = "." + string(formatFromContentType(contentType))
	}
	return fmt.Sprintf("%s%s/%s%s", sessionPrefix(sessionID), kind, id, ext)
}

func formatFromContentType(contentType string) domain.ImageFormat {
	switch {
	case strings.Contains(contentType, "png"):
		return domain.FormatPNG
	case strings.Contains(contentType, "gif"):
		return domain.FormatGIF
	case strings.Contains(contentType, "webp"):
		return domain.FormatWebP
	case strings.Contains(contentType, "bmp"):
		return domain.FormatBMP
	case strings.Contains(contentType, "tiff"):
		return domain.FormatTIFF
	default:
		return domain.FormatJPEG
	}
}

// IsPrecondition reports whether err means the batch cannot start with the
// current inputs.
func IsPrecondition(err error) bool {
	return errors.Is(err, planner.ErrInsufficientAssets) ||
		errors.Is(err, planner.ErrInvalidSettings) ||
		errors.Is(err, ErrInvalidStyle)
}
