package assembler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"video-batcher/internal/domain"
	"video-batcher/internal/encoder"
	"video-batcher/internal/usecase/assembler/operations"

	"github.com/wb-go/wbf/zlog"
)

type Options struct {
	Canvas       domain.Canvas
	Params       encoder.Params
	TempDir      string
	OutputPrefix string
}

// Assets are the batch pools with Data loaded, indexed the same way the
// planner indexed them.
type Assets struct {
	Covers []domain.MediaAsset
	Photos []domain.MediaAsset
	Music  []domain.MediaAsset
}

// Input carries everything shared by the videos of one batch.
type Input struct {
	BatchID      string
	SessionID    string
	Seed         uint64
	Style        domain.StyleConfig
	DecodePolicy domain.DecodePolicy
	Grading      domain.Grading
	Jitter       domain.Jitter
	Assets       Assets
	OutDir       string
}

// Progress is called once per video, after it either rendered or failed.
type Progress func(status domain.VideoStatus)

type Assembler struct {
	fitter   *operations.Fitter
	captions *operations.CaptionRenderer
	encoder  videoEncoder
	opts     Options
	logger   *zlog.Zerolog
}

func NewAssembler(fitter *operations.Fitter, captions *operations.CaptionRenderer, enc videoEncoder, opts Options, logger *zlog.Zerolog) *Assembler {
	if opts.Canvas.Width == 0 || opts.Canvas.Height == 0 {
		opts.Canvas = fitter.Canvas()
	}
	if opts.OutputPrefix == "" {
		opts.OutputPrefix = "OMEGA"
	}
	return &Assembler{
		fitter:   fitter,
		captions: captions,
		encoder:  enc,
		opts:     opts,
		logger:   logger,
	}
}

// OutputName is the deterministic file name of video index (0-based) in a session.
func (a *Assembler) OutputName(sessionID string, index int) string {
	return fmt.Sprintf("%s_%s_%d.mp4", a.opts.OutputPrefix, sessionID, index+1)
}

// Run renders plans strictly in order. A failing video is reported and skipped;
// only cancellation of ctx stops the loop early.
func (a *Assembler) Run(ctx context.Context, plans []domain.VideoPlan, in Input, progress Progress) ([]domain.RenderedVideo, []domain.VideoStatus, error) {
	videos := make([]domain.RenderedVideo, 0, len(plans))
	statuses := make([]domain.VideoStatus, 0, len(plans))

	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return videos, statuses, err
		}

		video, status, err := a.assembleAndRelease(ctx, plan, in)
		if err != nil {
			if ctx.Err() != nil {
				return videos, statuses, ctx.Err()
			}
			a.logger.Error().
				Err(err).
				Str("batch_id", in.BatchID).
				Int("video", plan.Index).
				Msg("Video failed, continuing with batch")
		} else {
			videos = append(videos, video)
		}

		statuses = append(statuses, status)
		if progress != nil {
			progress(status)
		}
	}

	return videos, statuses, nil
}

func (a *Assembler) assembleAndRelease(ctx context.Context, plan domain.VideoPlan, in Input) (domain.RenderedVideo, domain.VideoStatus, error) {
	defer func() {
		runtime.GC()
		debug.FreeOSMemory()
	}()
	return a.Assemble(ctx, plan, in)
}

// Assemble renders one planned video: fits every distinct frame once, renders
// the caption once, stages audio and hands the job to the encoder. Staging
// files are removed before it returns.
func (a *Assembler) Assemble(ctx context.Context, plan domain.VideoPlan, in Input) (domain.RenderedVideo, domain.VideoStatus, error) {
	name := a.OutputName(in.SessionID, plan.Index)
	status := domain.VideoStatus{
		BatchID:   in.BatchID,
		Index:     plan.Index,
		Name:      name,
		State:     domain.VideoFailed,
		CreatedAt: time.Now(),
	}

	fail := func(err error) (domain.RenderedVideo, domain.VideoStatus, error) {
		status.Error = err.Error()
		return domain.RenderedVideo{}, status, err
	}

	stage, err := os.MkdirTemp(a.opts.TempDir, "video-*")
	if err != nil {
		return fail(fmt.Errorf("failed to create staging dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(stage); err != nil {
			a.logger.Warn().Err(err).Str("dir", stage).Msg("Failed to remove staging dir")
		}
	}()

	job := encoder.Job{
		Output:  filepath.Join(in.OutDir, name),
		WorkDir: stage,
		Params:  a.params(plan, in),
	}

	captionPath, info, err := a.stageCaption(stage, plan.Caption, in.Style)
	if err != nil {
		return fail(err)
	}
	job.CaptionPath = captionPath
	status.FontSize = info.FontSize
	if info.FontFallback != nil {
		a.logger.Warn().Err(info.FontFallback).Str("batch_id", in.BatchID).Int("video", plan.Index).Msg("Caption font fell back to default")
	}
	if info.Overflow {
		a.logger.Warn().Str("batch_id", in.BatchID).Int("video", plan.Index).Int("font_size", info.FontSize).Msg("Caption wider than safe zone at minimum size")
	}

	frames, err := a.stageFrames(ctx, stage, plan, in, &status)
	if err != nil {
		return fail(err)
	}
	job.Frames = frames
	status.Frames = len(frames)
	status.Duration = job.Duration()

	if plan.Audio != nil {
		path, dur, err := a.stageAudio(ctx, stage, *plan.Audio, in, job.Duration())
		if err != nil {
			return fail(err)
		}
		job.AudioPath = path
		job.AudioDuration = dur
	}

	start := time.Now()
	if err := a.encoder.Encode(ctx, job); err != nil {
		_ = os.Remove(job.Output)
		return fail(fmt.Errorf("failed to encode video %d: %w", plan.Index, err))
	}

	status.State = domain.VideoRendered
	a.logger.Info().
		Str("batch_id", in.BatchID).
		Int("video", plan.Index).
		Str("name", name).
		Int("frames", status.Frames).
		Dur("duration", status.Duration).
		Dur("elapsed", time.Since(start)).
		Msg("Video rendered")

	return domain.RenderedVideo{
		Index:    plan.Index,
		Name:     name,
		Path:     job.Output,
		Duration: status.Duration,
	}, status, nil
}

func (a *Assembler) params(plan domain.VideoPlan, in Input) encoder.Params {
	p := a.opts.Params
	p.Width = a.opts.Canvas.Width
	p.Height = a.opts.Canvas.Height
	p.Grading = in.Grading

	if in.Jitter.Enabled {
		rng := rand.New(rand.NewPCG(in.Seed, uint64(plan.Index)+1))
		p = encoder.ApplyJitter(p, in.Jitter, rng)
	}
	return p
}

func (a *Assembler) stageCaption(stage, text string, style domain.StyleConfig) (string, operations.RenderInfo, error) {
	if strings.TrimSpace(text) == "" {
		return "", operations.RenderInfo{}, nil
	}

	layer, info, err := a.captions.Render(text, style, a.opts.Canvas)
	if err != nil {
		return "", info, fmt.Errorf("failed to render caption: %w", err)
	}

	path := filepath.Join(stage, "caption.png")
	if err := writePNG(path, layer); err != nil {
		return "", info, fmt.Errorf("failed to stage caption: %w", err)
	}
	return path, info, nil
}

type frameKey struct {
	kind  domain.AssetKind
	index int
}

// stageFrames writes each distinct source once and returns the frame list in
// planned order: cover first, then photos.
func (a *Assembler) stageFrames(ctx context.Context, stage string, plan domain.VideoPlan, in Input, status *domain.VideoStatus) ([]encoder.Frame, error) {
	type source struct {
		key      frameKey
		asset    *domain.MediaAsset
		duration time.Duration
	}

	sources := make([]source, 0, len(plan.Photos)+1)
	cover, err := lookup(in.Assets.Covers, plan.Cover)
	if err != nil {
		return nil, err
	}
	sources = append(sources, source{frameKey{domain.KindCover, plan.Cover.Index}, cover, plan.CoverDuration})
	for _, ref := range plan.Photos {
		photo, err := lookup(in.Assets.Photos, ref)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source{frameKey{domain.KindPhoto, ref.Index}, photo, plan.FrameDuration})
	}

	policy := in.DecodePolicy
	if policy == "" {
		policy = domain.DecodeSubstitute
	}

	staged := make(map[frameKey]string, len(sources))
	skipped := make(map[frameKey]bool)
	substituted := make(map[frameKey]bool)
	frames := make([]encoder.Frame, 0, len(sources))

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if skipped[src.key] {
			status.SkippedFrames++
			continue
		}
		if path, ok := staged[src.key]; ok {
			if substituted[src.key] {
				status.SubstitutedFrames++
			}
			frames = append(frames, encoder.Frame{Path: path, Duration: src.duration})
			continue
		}

		img, err := a.fitter.Fit(src.asset.Data, plan.Policy)
		if err != nil {
			if !errors.Is(err, operations.ErrDecode) {
				return nil, fmt.Errorf("failed to fit %s: %w", src.asset.Name, err)
			}

			switch policy {
			case domain.DecodeAbort:
				return nil, fmt.Errorf("%w: %s: %v", ErrDecodeAbort, src.asset.Name, err)
			case domain.DecodeSkip:
				a.logger.Warn().Err(err).Str("asset", src.asset.Name).Int("video", plan.Index).Msg("Skipping undecodable frame")
				skipped[src.key] = true
				status.SkippedFrames++
				continue
			default:
				a.logger.Warn().Err(err).Str("asset", src.asset.Name).Int("video", plan.Index).Msg("Substituting black frame for undecodable image")
				substituted[src.key] = true
				status.SubstitutedFrames++
			}
		}

		path := filepath.Join(stage, fmt.Sprintf("%s_%04d.png", src.key.kind, src.key.index))
		if err := writePNG(path, img); err != nil {
			return nil, fmt.Errorf("failed to stage frame: %w", err)
		}
		staged[src.key] = path
		frames = append(frames, encoder.Frame{Path: path, Duration: src.duration})
	}

	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	return frames, nil
}

func (a *Assembler) stageAudio(ctx context.Context, stage string, ref domain.AssetRef, in Input, videoDuration time.Duration) (string, time.Duration, error) {
	track, err := lookup(in.Assets.Music, ref)
	if err != nil {
		return "", 0, err
	}

	ext := strings.ToLower(filepath.Ext(track.Name))
	if ext == "" {
		ext = ".mp3"
	}
	path := filepath.Join(stage, "audio"+ext)
	if err := os.WriteFile(path, track.Data, 0o644); err != nil {
		return "", 0, fmt.Errorf("failed to stage audio: %w", err)
	}

	duration := videoDuration
	if probed, err := a.encoder.Probe(ctx, path); err != nil {
		a.logger.Warn().Err(err).Str("asset", track.Name).Msg("Failed to probe audio, cutting at video length")
	} else if probed < duration {
		duration = probed
	}

	return path, duration, nil
}

func lookup(pool []domain.MediaAsset, ref domain.AssetRef) (*domain.MediaAsset, error) {
	if ref.Index < 0 || ref.Index >= len(pool) {
		return nil, fmt.Errorf("%w: %s (index %d)", ErrAssetMissing, ref.Name, ref.Index)
	}
	asset := &pool[ref.Index]
	if ref.ID != "" && asset.ID != ref.ID {
		return nil, fmt.Errorf("%w: %s (id %s)", ErrAssetMissing, ref.Name, ref.ID)
	}
	return asset, nil
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(f, img)
}
