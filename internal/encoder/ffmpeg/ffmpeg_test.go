package ffmpeg

import (
	"context"
	"strings"
	"testing"
	"time"

	"video-batcher/internal/domain"
	"video-batcher/internal/encoder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

func lastValue(args []string, flag string) string {
	for i := len(args) - 2; i >= 0; i-- {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func testJob() encoder.Job {
	return encoder.Job{
		Frames: []encoder.Frame{
			{Path: "/tmp/v/cover.png", Duration: 450 * time.Millisecond},
			{Path: "/tmp/v/p0.png", Duration: 150 * time.Millisecond},
			{Path: "/tmp/v/p1.png", Duration: 150 * time.Millisecond},
		},
		CaptionPath: "/tmp/v/caption.png",
		Output:      "/tmp/v/OMEGA_s1_1.mp4",
		Params: encoder.Params{
			Width:      1080,
			Height:     1920,
			FPS:        24,
			VideoCodec: "libx264",
			AudioCodec: "aac",
			Preset:     "ultrafast",
			Threads:    1,
		},
	}
}

func TestArgs_SilentVideo(t *testing.T) {
	args := Args(testJob(), "/tmp/v/frames.txt")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-f concat")
	assert.Contains(t, joined, "-safe 0")
	assert.Contains(t, joined, "-i /tmp/v/frames.txt")
	assert.Contains(t, joined, "-i /tmp/v/caption.png")
	assert.Contains(t, lastValue(args, "-filter_complex"), "overlay")
	assert.Contains(t, lastValue(args, "-filter_complex"), "eof_action=repeat")
	assert.NotContains(t, lastValue(args, "-filter_complex"), "eq=")

	assert.Equal(t, "0.750", lastValue(args, "-t"))
	assert.Equal(t, "24", lastValue(args, "-r"))
	assert.Equal(t, "libx264", lastValue(args, "-c:v"))
	assert.Equal(t, "ultrafast", lastValue(args, "-preset"))
	assert.Equal(t, "1", lastValue(args, "-threads"))
	assert.Equal(t, "yuv420p", lastValue(args, "-pix_fmt"))
	assert.Empty(t, lastValue(args, "-c:a"))
	assert.Empty(t, lastValue(args, "-b:v"))
	assert.NotContains(t, args, "-shortest")
	assert.Contains(t, args, "-y")
	assert.Contains(t, args, "/tmp/v/OMEGA_s1_1.mp4")
}

func TestArgs_AudioGradingBitrate(t *testing.T) {
	job := testJob()
	job.AudioPath = "/tmp/v/track.mp3"
	job.AudioDuration = 500 * time.Millisecond
	job.Params.Grading = domain.Grading{Brightness: 0.1, Gamma: 1.2}
	job.Params.BitrateKbps = 2500

	args := Args(job, "/tmp/v/frames.txt")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-t 0.500 -i /tmp/v/track.mp3")
	assert.Equal(t, "0.750", lastValue(args, "-t"))
	assert.Equal(t, "aac", lastValue(args, "-c:a"))
	assert.Equal(t, "2500k", lastValue(args, "-b:v"))

	graph := lastValue(args, "-filter_complex")
	assert.Contains(t, graph, "eq=")
	assert.Contains(t, graph, "brightness=0.1")
	assert.Contains(t, graph, "gamma=1.2")
}

func TestConcatList(t *testing.T) {
	list := ConcatList([]encoder.Frame{
		{Path: "/a/cover.png", Duration: 450 * time.Millisecond},
		{Path: "/a/it's.png", Duration: 150 * time.Millisecond},
	})

	want := "ffconcat version 1.0\n" +
		"file '/a/cover.png'\nduration 0.450\n" +
		"file '/a/it'\\''s.png'\nduration 0.150\n" +
		"file '/a/it'\\''s.png'\n"
	assert.Equal(t, want, list)
	assert.Empty(t, ConcatList(nil)[len("ffconcat version 1.0\n"):])
}

func TestParseProbe(t *testing.T) {
	d, err := ParseProbe(`{"format":{"duration":"12.345000"}}`)
	require.NoError(t, err)
	assert.Equal(t, 12345*time.Millisecond, d.Round(time.Millisecond))

	_, err = ParseProbe(`{"format":{}}`)
	assert.ErrorIs(t, err, encoder.ErrProbe)

	_, err = ParseProbe(`not json`)
	assert.ErrorIs(t, err, encoder.ErrProbe)
}

func TestEncode_EmptyJob(t *testing.T) {
	zlog.Init()
	e := NewEncoder("", &zlog.Logger)
	assert.ErrorIs(t, e.Encode(context.Background(), encoder.Job{}), encoder.ErrEmptyJob)
}

func TestEncode_MissingBinary(t *testing.T) {
	zlog.Init()
	e := NewEncoder("/nonexistent/ffmpeg-binary", &zlog.Logger)

	job := testJob()
	job.Output = t.TempDir() + "/out.mp4"
	err := e.Encode(context.Background(), job)
	assert.ErrorIs(t, err, encoder.ErrEncode)
}
