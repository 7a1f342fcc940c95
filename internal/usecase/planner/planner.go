package planner

import (
	"fmt"
	"math/rand/v2"
	"time"

	"video-batcher/internal/domain"
)

type Input struct {
	Covers []domain.MediaAsset
	Photos []domain.MediaAsset
	Music  []domain.MediaAsset
}

// BatchPlan is the planner output: one VideoPlan per output video in render
// order, plus the seed that reproduces it.
type BatchPlan struct {
	Seed   uint64
	Videos []domain.VideoPlan
}

type Planner struct {
	minPhotos      int
	defaultCaption string
	now            func() time.Time
}

func NewPlanner(minPhotos int, defaultCaption string) *Planner {
	return &Planner{
		minPhotos:      max(1, minPhotos),
		defaultCaption: defaultCaption,
		now:            time.Now,
	}
}

// Check validates preconditions without planning, so a batch can be refused
// before it is queued.
func (p *Planner) Check(in Input, settings domain.BatchSettings) error {
	if _, err := p.normalize(settings); err != nil {
		return err
	}
	return p.checkAssets(in)
}

func (p *Planner) Plan(in Input, settings domain.BatchSettings) (*BatchPlan, error) {
	s, err := p.normalize(settings)
	if err != nil {
		return nil, err
	}
	if err := p.checkAssets(in); err != nil {
		return nil, err
	}

	seed := s.Seed
	if seed == 0 {
		seed = uint64(p.now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	captions := NormalizeCaptions(s.Captions, p.defaultCaption)
	if len(captions) == 0 {
		captions = []string{""}
	}

	count := s.RequestedCount
	var covers *Pool
	switch s.Strategy {
	case domain.StrategyOnePerCover:
		count = len(in.Covers)
	case domain.StrategyFixedCountCycling:
		covers = NewPool(len(in.Covers), childRNG(rng), true)
	}

	videos := make([]domain.VideoPlan, 0, count)
	for i := 0; i < count; i++ {
		coverIdx := i
		if covers != nil {
			if coverIdx, err = covers.Draw(); err != nil {
				return nil, fmt.Errorf("failed to draw cover: %w", err)
			}
		}

		plan, err := p.planVideo(i, rng, in, s, captions)
		if err != nil {
			return nil, err
		}
		plan.Cover = domain.RefOf(coverIdx, in.Covers[coverIdx])
		videos = append(videos, plan)
	}

	return &BatchPlan{Seed: seed, Videos: videos}, nil
}

func (p *Planner) planVideo(index int, rng *rand.Rand, in Input, s domain.BatchSettings, captions []string) (domain.VideoPlan, error) {
	frame := s.FrameDurations[0]
	if len(s.FrameDurations) > 1 {
		frame = s.FrameDurations[rng.IntN(len(s.FrameDurations))]
	}
	cover := frame * time.Duration(s.CoverHoldFactor)

	target := s.MinDuration
	if span := s.MaxDuration - s.MinDuration; span > 0 {
		target += time.Duration(rng.Int64N(int64(span) + 1))
	}

	n := PhotoCount(target, cover, frame)
	// Flooring can land just under the lower bound; one more frame fixes it
	// whenever that still fits under the upper bound.
	if total := cover + time.Duration(n)*frame; total < s.MinDuration && total+frame <= s.MaxDuration {
		n++
	}

	photos := NewPool(len(in.Photos), childRNG(rng), true)
	refs := make([]domain.AssetRef, 0, n)
	for j := 0; j < n; j++ {
		idx, err := photos.Draw()
		if err != nil {
			return domain.VideoPlan{}, fmt.Errorf("failed to draw photo: %w", err)
		}
		refs = append(refs, domain.RefOf(idx, in.Photos[idx]))
	}

	plan := domain.VideoPlan{
		Index:          index,
		Photos:         refs,
		Caption:        captions[rng.IntN(len(captions))],
		FrameDuration:  frame,
		CoverDuration:  cover,
		TargetDuration: target,
		Policy:         s.Policy,
		Refills:        photos.Refills(),
	}

	if len(in.Music) > 0 {
		idx := rng.IntN(len(in.Music))
		ref := domain.RefOf(idx, in.Music[idx])
		plan.Audio = &ref
	}

	return plan, nil
}

// PhotoCount is floor((target - cover) / frame), never negative.
func PhotoCount(target, cover, frame time.Duration) int {
	if frame <= 0 || target <= cover {
		return 0
	}
	return int((target - cover) / frame)
}

func (p *Planner) checkAssets(in Input) error {
	if len(in.Covers) < 1 {
		return fmt.Errorf("%w: need at least 1 cover, have %d", ErrInsufficientAssets, len(in.Covers))
	}
	if len(in.Photos) < p.minPhotos {
		return fmt.Errorf("%w: need at least %d photos, have %d", ErrInsufficientAssets, p.minPhotos, len(in.Photos))
	}
	return nil
}

func (p *Planner) normalize(s domain.BatchSettings) (domain.BatchSettings, error) {
	if s.Strategy == "" {
		s.Strategy = domain.StrategyFixedCountCycling
	}
	if s.Policy == "" {
		s.Policy = domain.FitSideFit
	}
	if s.CoverHoldFactor == 0 {
		s.CoverHoldFactor = 3
	}

	switch s.Strategy {
	case domain.StrategyOnePerCover:
	case domain.StrategyFixedCountCycling:
		if s.RequestedCount < 1 {
			return s, fmt.Errorf("%w: requested count must be >= 1", ErrInvalidSettings)
		}
	default:
		return s, fmt.Errorf("%w: unknown strategy %q", ErrInvalidSettings, s.Strategy)
	}

	switch s.Policy {
	case domain.FitFillCrop, domain.FitSideFit:
	default:
		return s, fmt.Errorf("%w: unknown fit policy %q", ErrInvalidSettings, s.Policy)
	}

	if s.MinDuration <= 0 || s.MaxDuration < s.MinDuration {
		return s, fmt.Errorf("%w: duration range [%s, %s]", ErrInvalidSettings, s.MinDuration, s.MaxDuration)
	}
	if len(s.FrameDurations) == 0 {
		return s, fmt.Errorf("%w: no frame durations", ErrInvalidSettings)
	}
	for _, d := range s.FrameDurations {
		if d <= 0 {
			return s, fmt.Errorf("%w: frame duration %s", ErrInvalidSettings, d)
		}
	}
	if s.CoverHoldFactor < 1 {
		return s, fmt.Errorf("%w: cover hold factor %d", ErrInvalidSettings, s.CoverHoldFactor)
	}

	return s, nil
}

func childRNG(rng *rand.Rand) *rand.Rand {
	return rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
}
