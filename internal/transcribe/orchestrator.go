package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tube-transcriber/internal/fetch"
)

// ErrEmptyArtifact is returned when the audio file is missing or zero-length
// at the point of transcription.
var ErrEmptyArtifact = errors.New("audio artifact is missing or empty")

const defaultChunkSeconds = 120

// CaptionSource yields an existing caption transcript for a video, or
// youtube.ErrNoCaptions-like failure when none is usable.
type CaptionSource interface {
	Transcript(ctx context.Context, videoID string) (string, error)
}

// AudioFetcher acquires the audio artifact for a video.
type AudioFetcher interface {
	Fetch(ctx context.Context, videoID string) (*fetch.Artifact, error)
}

// Segmenter extracts a contiguous sub-range of an audio file.
type Segmenter interface {
	Split(ctx context.Context, src string, startSec, durationSec float64, dst string) error
}

// Orchestrator produces a transcript for a video reference: captions when the
// platform has them, model transcription of the downloaded audio otherwise.
type Orchestrator struct {
	captions    CaptionSource
	fetcher     AudioFetcher
	segmenter   Segmenter
	transcriber Transcriber
	logger      *slog.Logger

	chunkSeconds int
	maxWorkers   int

	stat    func(string) (os.FileInfo, error)
	remove  func(string) error
	tempDir func() string
	now     func() time.Time
	notify  func(stage string)
}

// Pipeline stage names reported through the stage notifier.
const (
	StageFetching     = "fetching"
	StageDownloading  = "downloading"
	StageTranscribing = "transcribing"
)

// Option adjusts orchestrator behavior.
type Option func(*Orchestrator)

// WithChunkSeconds overrides the segmentation threshold and window size.
func WithChunkSeconds(seconds int) Option {
	return func(o *Orchestrator) {
		if seconds > 0 {
			o.chunkSeconds = seconds
		}
	}
}

// WithMaxWorkers caps the segment worker pool.
func WithMaxWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxWorkers = n
		}
	}
}

// WithStageNotifier registers a callback invoked as the pipeline enters each
// stage. The callback runs on the orchestrator goroutine and must not block.
func WithStageNotifier(fn func(stage string)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.notify = fn
		}
	}
}

// NewOrchestrator wires the transcription pipeline.
func NewOrchestrator(captions CaptionSource, fetcher AudioFetcher, segmenter Segmenter, transcriber Transcriber, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		captions:     captions,
		fetcher:      fetcher,
		segmenter:    segmenter,
		transcriber:  transcriber,
		logger:       logger,
		chunkSeconds: defaultChunkSeconds,
		maxWorkers:   runtime.NumCPU(),
		stat:         os.Stat,
		remove:       os.Remove,
		tempDir:      os.TempDir,
		now:          time.Now,
		notify:       func(string) {},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Transcribe returns the transcript text for a video id. Caption lookup runs
// first; any caption failure means "no captions", never a fatal error.
func (o *Orchestrator) Transcribe(ctx context.Context, videoID string) (string, error) {
	o.notify(StageFetching)
	text, err := o.captions.Transcript(ctx, videoID)
	if err == nil && text != "" {
		return text, nil
	}
	if err != nil {
		o.logger.Info("no usable captions, falling back to model transcription",
			"videoID", videoID, "reason", err)
	}

	o.notify(StageDownloading)
	artifact, err := o.fetcher.Fetch(ctx, videoID)
	if err != nil {
		return "", err
	}
	defer func() {
		if rmErr := artifact.Remove(); rmErr != nil {
			o.logger.Warn("artifact cleanup failed", "path", artifact.Path, "err", rmErr)
		}
	}()

	info, err := o.stat(artifact.Path)
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyArtifact, artifact.Path)
	}

	o.notify(StageTranscribing)
	if artifact.DurationSeconds <= float64(o.chunkSeconds) {
		text, err := o.transcriber.Transcribe(ctx, artifact.Path)
		if err != nil {
			return "", fmt.Errorf("transcription failed: %w", err)
		}
		return text, nil
	}

	return o.transcribeChunked(ctx, artifact)
}

// transcribeChunked partitions the artifact into chunk-sized windows and
// transcribes them concurrently. Results join in ascending start-time order
// regardless of completion order: the results slice is indexed by segment
// position, never appended on completion.
func (o *Orchestrator) transcribeChunked(ctx context.Context, artifact *fetch.Artifact) (string, error) {
	chunk := float64(o.chunkSeconds)
	segments := int(math.Ceil(artifact.DurationSeconds / chunk))
	workers := min(segments, o.maxWorkers)

	o.logger.Info("transcribing in segments",
		"duration", artifact.DurationSeconds,
		"segments", segments,
		"workers", workers)

	results := make([]string, segments)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < segments; i++ {
		g.Go(func() error {
			start := float64(i) * chunk
			duration := math.Min(chunk, artifact.DurationSeconds-start)
			results[i] = o.transcribeSegment(gctx, artifact.Path, start, duration)
			return nil
		})
	}

	// Workers never return errors: a failed segment degrades to a
	// placeholder in its slot instead of aborting the transcript.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.Join(results, " ")), nil
}

// transcribeSegment splits and transcribes one window, deleting the segment
// file regardless of outcome. Failures yield a descriptive placeholder.
func (o *Orchestrator) transcribeSegment(ctx context.Context, parentPath string, startSec, durationSec float64) string {
	segPath := o.segmentPath(startSec)
	defer func() {
		if err := o.remove(segPath); err != nil && !os.IsNotExist(err) {
			o.logger.Warn("segment cleanup failed", "path", segPath, "err", err)
		}
	}()

	if err := o.segmenter.Split(ctx, parentPath, startSec, durationSec, segPath); err != nil {
		o.logger.Warn("segment split failed", "start", startSec, "err", err)
		return segmentPlaceholder(startSec)
	}

	text, err := o.transcriber.Transcribe(ctx, segPath)
	if err != nil {
		o.logger.Warn("segment transcription failed", "start", startSec, "err", err)
		return segmentPlaceholder(startSec)
	}
	return text
}

// segmentPath builds a unique segment file name from start time and
// submission timestamp, so concurrent workers never collide.
func (o *Orchestrator) segmentPath(startSec float64) string {
	name := fmt.Sprintf("segment_%d_%d.mp3", int(startSec), o.now().UnixNano())
	return filepath.Join(o.tempDir(), name)
}

// segmentPlaceholder is the inline text a failed segment contributes.
func segmentPlaceholder(startSec float64) string {
	return fmt.Sprintf("[transcription unavailable for segment starting at %ds]", int(startSec))
}

// NewOrchestratorForTests wires an orchestrator with injectable OS deps.
func NewOrchestratorForTests(
	captions CaptionSource,
	fetcher AudioFetcher,
	segmenter Segmenter,
	transcriber Transcriber,
	logger *slog.Logger,
	stat func(string) (os.FileInfo, error),
	remove func(string) error,
	tempDir string,
	opts ...Option,
) *Orchestrator {
	o := NewOrchestrator(captions, fetcher, segmenter, transcriber, logger, opts...)
	o.stat = stat
	o.remove = remove
	o.tempDir = func() string { return tempDir }
	return o
}
