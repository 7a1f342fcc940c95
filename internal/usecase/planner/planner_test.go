package planner

import (
	"fmt"
	"testing"
	"time"

	"video-batcher/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assets(kind domain.AssetKind, n int) []domain.MediaAsset {
	out := make([]domain.MediaAsset, n)
	for i := range out {
		out[i] = domain.MediaAsset{
			ID:   fmt.Sprintf("%s-%d", kind, i),
			Name: fmt.Sprintf("%s_%02d.jpg", kind, i),
			Kind: kind,
		}
	}
	return out
}

func fixedSettings(seed uint64) domain.BatchSettings {
	s := domain.DefaultBatchSettings()
	s.Seed = seed
	s.RequestedCount = 1
	s.MinDuration = 9 * time.Second
	s.MaxDuration = 9 * time.Second
	s.FrameDurations = []time.Duration{150 * time.Millisecond}
	return s
}

func TestPlan_RefillScenario(t *testing.T) {
	p := NewPlanner(5, "OMEGA")
	in := Input{Covers: assets(domain.KindCover, 3), Photos: assets(domain.KindPhoto, 50)}

	plan, err := p.Plan(in, fixedSettings(42))
	require.NoError(t, err)
	require.Len(t, plan.Videos, 1)

	v := plan.Videos[0]
	assert.Equal(t, 450*time.Millisecond, v.CoverDuration)
	assert.Len(t, v.Photos, 57)
	assert.GreaterOrEqual(t, v.Refills, 1)
	assert.Equal(t, 9*time.Second, v.Duration())

	seen := make(map[int]bool)
	for _, ref := range v.Photos[:50] {
		assert.False(t, seen[ref.Index], "photo %d repeated before pool exhausted", ref.Index)
		seen[ref.Index] = true
	}
	assert.Len(t, seen, 50)
	assert.NotEqual(t, v.Photos[49].Index, v.Photos[50].Index)
}

func TestPlan_CoverCyclingIsInjectivePerCycle(t *testing.T) {
	p := NewPlanner(5, "OMEGA")
	in := Input{Covers: assets(domain.KindCover, 4), Photos: assets(domain.KindPhoto, 10)}

	s := fixedSettings(7)
	s.RequestedCount = 10

	plan, err := p.Plan(in, s)
	require.NoError(t, err)
	require.Len(t, plan.Videos, 10)

	for start := 0; start+4 <= len(plan.Videos); start += 4 {
		cycle := make(map[int]bool)
		for _, v := range plan.Videos[start : start+4] {
			assert.False(t, cycle[v.Cover.Index], "cover %d drawn twice in one cycle", v.Cover.Index)
			cycle[v.Cover.Index] = true
		}
	}

	for i, v := range plan.Videos {
		assert.Equal(t, i, v.Index)
	}
}

func TestPlan_OnePerCover(t *testing.T) {
	p := NewPlanner(5, "OMEGA")
	in := Input{Covers: assets(domain.KindCover, 3), Photos: assets(domain.KindPhoto, 8)}

	s := fixedSettings(1)
	s.Strategy = domain.StrategyOnePerCover
	s.RequestedCount = 99

	plan, err := p.Plan(in, s)
	require.NoError(t, err)
	require.Len(t, plan.Videos, 3)

	for i, v := range plan.Videos {
		assert.Equal(t, i, v.Cover.Index)
		assert.Equal(t, in.Covers[i].ID, v.Cover.ID)
	}
}

func TestPlan_DurationWithinRange(t *testing.T) {
	p := NewPlanner(5, "OMEGA")
	in := Input{Covers: assets(domain.KindCover, 5), Photos: assets(domain.KindPhoto, 30)}

	s := domain.DefaultBatchSettings()
	s.Seed = 99
	s.RequestedCount = 200
	s.FrameDurations = []time.Duration{100 * time.Millisecond, 150 * time.Millisecond, 200 * time.Millisecond}

	plan, err := p.Plan(in, s)
	require.NoError(t, err)

	speeds := make(map[time.Duration]bool)
	for _, v := range plan.Videos {
		d := v.Duration()
		assert.GreaterOrEqual(t, d, s.MinDuration, "video %d", v.Index)
		assert.LessOrEqual(t, d, s.MaxDuration, "video %d", v.Index)
		assert.Equal(t, 3*v.FrameDuration, v.CoverDuration)
		assert.GreaterOrEqual(t, v.TargetDuration, s.MinDuration)
		assert.LessOrEqual(t, v.TargetDuration, s.MaxDuration)
		speeds[v.FrameDuration] = true
	}
	assert.Len(t, speeds, 3)
}

func TestPlan_DeterministicForSeed(t *testing.T) {
	p := NewPlanner(5, "OMEGA")
	in := Input{
		Covers: assets(domain.KindCover, 3),
		Photos: assets(domain.KindPhoto, 20),
		Music:  assets(domain.KindMusic, 4),
	}

	s := domain.DefaultBatchSettings()
	s.Seed = 12345
	s.Captions = []string{"one\ntwo", "three"}
	s.FrameDurations = []time.Duration{120 * time.Millisecond, 150 * time.Millisecond}

	a, err := p.Plan(in, s)
	require.NoError(t, err)
	b, err := p.Plan(in, s)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, uint64(12345), a.Seed)
}

func TestPlan_ZeroSeedIsRecorded(t *testing.T) {
	p := NewPlanner(5, "OMEGA")
	p.now = func() time.Time { return time.Unix(0, 777) }
	in := Input{Covers: assets(domain.KindCover, 1), Photos: assets(domain.KindPhoto, 5)}

	plan, err := p.Plan(in, fixedSettings(0))
	require.NoError(t, err)
	assert.Equal(t, uint64(777), plan.Seed)

	again, err := p.Plan(in, fixedSettings(plan.Seed))
	require.NoError(t, err)
	assert.Equal(t, plan.Videos, again.Videos)
}

func TestPlan_CaptionsAndAudio(t *testing.T) {
	p := NewPlanner(5, "OMEGA")
	in := Input{Covers: assets(domain.KindCover, 2), Photos: assets(domain.KindPhoto, 6)}

	s := fixedSettings(3)
	s.RequestedCount = 6
	s.Captions = []string{"", "   "}

	plan, err := p.Plan(in, s)
	require.NoError(t, err)
	for _, v := range plan.Videos {
		assert.Equal(t, "OMEGA", v.Caption)
		assert.Nil(t, v.Audio)
	}

	in.Music = assets(domain.KindMusic, 2)
	s.Captions = []string{"alpha", "beta"}
	plan, err = p.Plan(in, s)
	require.NoError(t, err)
	for _, v := range plan.Videos {
		assert.Contains(t, []string{"alpha", "beta"}, v.Caption)
		require.NotNil(t, v.Audio)
		assert.Less(t, v.Audio.Index, 2)
		assert.Equal(t, in.Music[v.Audio.Index].Name, v.Audio.Name)
	}
}

func TestPlan_Preconditions(t *testing.T) {
	p := NewPlanner(5, "OMEGA")

	tests := []struct {
		name    string
		in      Input
		mutate  func(*domain.BatchSettings)
		wantErr error
	}{
		{
			name:    "no covers",
			in:      Input{Photos: assets(domain.KindPhoto, 10)},
			wantErr: ErrInsufficientAssets,
		},
		{
			name:    "too few photos",
			in:      Input{Covers: assets(domain.KindCover, 1), Photos: assets(domain.KindPhoto, 4)},
			wantErr: ErrInsufficientAssets,
		},
		{
			name:    "inverted range",
			in:      Input{Covers: assets(domain.KindCover, 1), Photos: assets(domain.KindPhoto, 5)},
			mutate:  func(s *domain.BatchSettings) { s.MinDuration = 10 * time.Second; s.MaxDuration = 8 * time.Second },
			wantErr: ErrInvalidSettings,
		},
		{
			name:    "zero count",
			in:      Input{Covers: assets(domain.KindCover, 1), Photos: assets(domain.KindPhoto, 5)},
			mutate:  func(s *domain.BatchSettings) { s.RequestedCount = 0 },
			wantErr: ErrInvalidSettings,
		},
		{
			name:    "unknown strategy",
			in:      Input{Covers: assets(domain.KindCover, 1), Photos: assets(domain.KindPhoto, 5)},
			mutate:  func(s *domain.BatchSettings) { s.Strategy = "round_robin" },
			wantErr: ErrInvalidSettings,
		},
		{
			name:    "no frame durations",
			in:      Input{Covers: assets(domain.KindCover, 1), Photos: assets(domain.KindPhoto, 5)},
			mutate:  func(s *domain.BatchSettings) { s.FrameDurations = nil },
			wantErr: ErrInvalidSettings,
		},
		{
			name:    "negative frame duration",
			in:      Input{Covers: assets(domain.KindCover, 1), Photos: assets(domain.KindPhoto, 5)},
			mutate:  func(s *domain.BatchSettings) { s.FrameDurations = []time.Duration{-time.Second} },
			wantErr: ErrInvalidSettings,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fixedSettings(1)
			if tt.mutate != nil {
				tt.mutate(&s)
			}

			_, err := p.Plan(tt.in, s)
			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, p.Check(tt.in, s), tt.wantErr)
		})
	}
}

func TestPhotoCount(t *testing.T) {
	assert.Equal(t, 57, PhotoCount(9*time.Second, 450*time.Millisecond, 150*time.Millisecond))
	assert.Equal(t, 0, PhotoCount(time.Second, 2*time.Second, 100*time.Millisecond))
	assert.Equal(t, 0, PhotoCount(time.Second, 0, 0))
}

func TestParseCorpus(t *testing.T) {
	assert.Equal(t, []string{"first", "second", "third"}, ParseCorpus("first\r\n\n  second  \n\nthird\n"))
	assert.Empty(t, ParseCorpus("\n \n"))
	assert.Equal(t, []string{"DEFAULT"}, NormalizeCaptions([]string{"", "\n"}, "DEFAULT"))
	assert.Equal(t, []string{"a", "b", "c"}, NormalizeCaptions([]string{"a\nb", "c"}, "DEFAULT"))
}
