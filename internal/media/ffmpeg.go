package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrUnsupportedFormat is returned when the target format has no encode profile.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrNoAudioStream is returned when a probed file contains no audio stream.
	ErrNoAudioStream = errors.New("no audio stream found")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor. Empty paths default to
// "ffmpeg" and "ffprobe" found via PATH.
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Verify interface implementation at compile time.
var _ Processor = (*FFmpegProcessor)(nil)

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	Channels   int    `json:"channels"`
	SampleRate string `json:"sample_rate"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// Probe returns duration, channel count and sample rate of the audio stream.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (Info, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return Info{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return Info{}, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var ff ffprobeOutput
	if err := json.Unmarshal(output, &ff); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var audio *ffprobeStream
	for i := range ff.Streams {
		if ff.Streams[i].CodecType == "audio" {
			audio = &ff.Streams[i]
			break
		}
	}
	if audio == nil {
		return Info{}, fmt.Errorf("%w: %s", ErrNoAudioStream, path)
	}

	durationSec, err := strconv.ParseFloat(ff.Format.Duration, 64)
	if err != nil {
		return Info{}, fmt.Errorf("parse duration %q: %w", ff.Format.Duration, err)
	}
	sampleRate, _ := strconv.Atoi(audio.SampleRate)

	return Info{
		DurationMs: int64(math.Round(durationSec * 1000)),
		Channels:   audio.Channels,
		SampleRate: sampleRate,
	}, nil
}

// Trim decodes src, cuts [startMs, endMs) and writes the result to dst.
func (p *FFmpegProcessor) Trim(ctx context.Context, src, dst string, startMs, endMs int64) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(startMs),
		"-t", formatSeconds(endMs - startMs),
		"-i", src,
		dst,
	}
	return p.runFFmpeg(ctx, args, nil, 0)
}

// encodeArgs returns the output encoding arguments for a target format.
// mp3 and m4a use a fixed 192k bitrate; wav is lossless 16-bit PCM.
func encodeArgs(format string) ([]string, error) {
	switch format {
	case "mp3":
		return []string{"-b:a", "192k"}, nil
	case "m4a":
		return []string{"-c:a", "aac", "-b:a", "192k"}, nil
	case "wav":
		return []string{"-c:a", "pcm_s16le", "-ar", "44100", "-ac", "2"}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Concat concatenates the manifest entries into dst using the concat demuxer,
// reporting fractional encode progress via opts.OnProgress.
func (p *FFmpegProcessor) Concat(ctx context.Context, manifestPath, dst string, opts EncodeOpts) error {
	enc, err := encodeArgs(opts.Format)
	if err != nil {
		return err
	}

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
	}
	args = append(args, enc...)
	args = append(args, dst)

	return p.runFFmpeg(ctx, args, opts.OnProgress, opts.TotalDurationMs)
}

// runFFmpeg executes ffmpeg with the given arguments. When onProgress is
// non-nil, "-progress pipe:1 -nostats" is appended and the key=value stream
// on stdout is translated into percent of totalDurationMs.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string, onProgress func(float64), totalDurationMs int64) error {
	if onProgress != nil {
		args = append(args, "-progress", "pipe:1", "-nostats")
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if onProgress != nil && totalDurationMs > 0 {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("ffmpeg stdout pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start ffmpeg: %w", err)
		}

		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if us, ok := parseProgressLine(scanner.Text()); ok {
				pct := float64(us/1000) / float64(totalDurationMs) * 100
				onProgress(math.Min(100, math.Max(0, pct)))
			}
		}

		err = cmd.Wait()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
			}
			return &FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
		}
		return nil
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// parseProgressLine extracts the encoder's output position in microseconds
// from an ffmpeg -progress key=value line.
func parseProgressLine(line string) (int64, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return 0, false
	}
	// out_time_us is the documented key; out_time_ms carries the same
	// microsecond value on older builds.
	if key != "out_time_us" && key != "out_time_ms" {
		return 0, false
	}
	us, err := strconv.ParseInt(value, 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return us, true
}

// formatSeconds renders a millisecond count as fractional seconds for ffmpeg.
func formatSeconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000.0, 'f', 3, 64)
}

// FFmpegError represents a failed ffmpeg invocation, including stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
