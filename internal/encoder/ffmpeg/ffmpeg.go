package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"video-batcher/internal/encoder"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"github.com/wb-go/wbf/zlog"
)

const concatListName = "frames.txt"

// Encoder drives the ffmpeg binary. The filter graph is built with ffmpeg-go and
// executed under the caller's context.
type Encoder struct {
	binary string
	logger *zlog.Zerolog
}

func NewEncoder(binary string, logger *zlog.Zerolog) *Encoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Encoder{binary: binary, logger: logger}
}

func (e *Encoder) Encode(ctx context.Context, job encoder.Job) error {
	if len(job.Frames) == 0 {
		return encoder.ErrEmptyJob
	}

	dir := job.WorkDir
	if dir == "" {
		dir = filepath.Dir(job.Output)
	}
	listPath := filepath.Join(dir, concatListName)
	if err := os.WriteFile(listPath, []byte(ConcatList(job.Frames)), 0o644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	defer os.Remove(listPath)

	args := Args(job, listPath)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v: %s", encoder.ErrEncode, err, tail(stderr.String(), 512))
	}

	e.logger.Debug().
		Str("output", job.Output).
		Int("frames", len(job.Frames)).
		Dur("elapsed", time.Since(start)).
		Msg("ffmpeg encode finished")

	return nil
}

// Args compiles the ffmpeg command line for job reading frames from listPath.
func Args(job encoder.Job, listPath string) []string {
	return Stream(job, listPath).GetArgs()
}

// Stream builds the graph: concat demuxer (hard cuts), caption overlay held to
// the end, optional eq grading, optional audio cut to its planned length.
func Stream(job encoder.Job, listPath string) *ffmpeg.Stream {
	p := job.Params

	video := ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": "0"}).Video()

	if p.Width > 0 && p.Height > 0 {
		video = video.Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", p.Width, p.Height)})
	}

	if job.CaptionPath != "" {
		caption := ffmpeg.Input(job.CaptionPath).Video()
		if p.Width > 0 && p.Height > 0 {
			caption = caption.Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", p.Width, p.Height)})
		}
		video = video.Overlay(caption, "repeat")
	}

	if !p.Grading.IsZero() {
		gamma := p.Grading.Gamma
		if gamma == 0 {
			gamma = 1
		}
		video = video.Filter("eq", ffmpeg.Args{}, ffmpeg.KwArgs{
			"brightness": formatFloat(p.Grading.Brightness),
			"gamma":      formatFloat(gamma),
		})
	}

	streams := []*ffmpeg.Stream{video}
	if job.AudioPath != "" {
		audioArgs := ffmpeg.KwArgs{}
		if job.AudioDuration > 0 {
			audioArgs["t"] = seconds(job.AudioDuration)
		}
		streams = append(streams, ffmpeg.Input(job.AudioPath, audioArgs).Audio())
	}

	out := ffmpeg.KwArgs{
		"t":       seconds(job.Duration()),
		"pix_fmt": orDefault(p.PixFmt, "yuv420p"),
	}
	if p.FPS > 0 {
		out["r"] = formatFloat(p.FPS)
	}
	if p.VideoCodec != "" {
		out["c:v"] = p.VideoCodec
	}
	if p.Preset != "" {
		out["preset"] = p.Preset
	}
	if p.Threads > 0 {
		out["threads"] = strconv.Itoa(p.Threads)
	}
	if p.BitrateKbps > 0 {
		out["b:v"] = fmt.Sprintf("%dk", p.BitrateKbps)
	}
	if job.AudioPath != "" && p.AudioCodec != "" {
		out["c:a"] = p.AudioCodec
	}

	return ffmpeg.Output(streams, job.Output, out).OverWriteOutput()
}

// ConcatList renders the concat demuxer script. The last file is listed twice
// because the demuxer ignores the duration of the final entry.
func ConcatList(frames []encoder.Frame) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, f := range frames {
		fmt.Fprintf(&b, "file %s\nduration %s\n", quote(f.Path), seconds(f.Duration))
	}
	if len(frames) > 0 {
		fmt.Fprintf(&b, "file %s\n", quote(frames[len(frames)-1].Path))
	}
	return b.String()
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (e *Encoder) Probe(ctx context.Context, path string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	raw, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", encoder.ErrProbe, err)
	}

	return ParseProbe(raw)
}

func ParseProbe(raw string) (time.Duration, error) {
	var res probeResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return 0, fmt.Errorf("%w: %v", encoder.ErrProbe, err)
	}

	secs, err := strconv.ParseFloat(res.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q", encoder.ErrProbe, res.Format.Duration)
	}

	return time.Duration(secs * float64(time.Second)), nil
}

func quote(path string) string {
	return "'" + strings.ReplaceAll(filepath.ToSlash(path), "'", `'\''`) + "'"
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
