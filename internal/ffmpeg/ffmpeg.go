package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tube-transcriber/internal/cmdrun"
)

// ErrSegmentation is returned when the media tool fails to extract a segment.
var ErrSegmentation = errors.New("audio segmentation failed")

// Tool wraps ffmpeg/ffprobe invocations behind the command runner.
type Tool struct {
	ffmpegPath  string
	ffprobePath string
	runner      cmdrun.Runner
}

// NewTool builds a production ffmpeg wrapper.
func NewTool() *Tool {
	return &Tool{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		runner:      cmdrun.New(),
	}
}

// Probe returns the duration of a media file in seconds.
func (t *Tool) Probe(ctx context.Context, path string) (float64, error) {
	args := buildProbeArgs(path)
	result, err := t.runner.Run(ctx, t.ffprobePath, args...)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed (exit %d): %w", result.ExitCode, err)
	}

	raw := strings.TrimSpace(result.Stdout)
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe reported unparseable duration %q: %w", raw, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("ffprobe reported non-positive duration %f", duration)
	}
	return duration, nil
}

// Split extracts [startSec, startSec+durationSec) of src into dst using stream
// copy, so no re-encode happens.
func (t *Tool) Split(ctx context.Context, src string, startSec, durationSec float64, dst string) error {
	args := buildSplitArgs(src, startSec, durationSec, dst)
	result, err := t.runner.Run(ctx, t.ffmpegPath, args...)
	if err != nil {
		return fmt.Errorf("%w: exit %d: %s", ErrSegmentation, result.ExitCode, stderrTail(result.Stderr))
	}
	return nil
}

// buildProbeArgs builds ffprobe CLI args printing only the container duration.
func buildProbeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

// buildSplitArgs builds ffmpeg CLI args for a stream-copied audio sub-range.
func buildSplitArgs(src string, startSec, durationSec float64, dst string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-ss", formatSeconds(startSec),
		"-t", formatSeconds(durationSec),
		"-i", src,
		"-vn",
		"-c", "copy",
		dst,
	}
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

// stderrTail keeps the last line of stderr for error messages.
func stderrTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// NewToolForTests builds a wrapper with an injectable runner.
func NewToolForTests(ffmpegPath, ffprobePath string, runner cmdrun.Runner) *Tool {
	return &Tool{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
	}
}
