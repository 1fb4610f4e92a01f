package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"tube-transcriber/internal/identity"
)

const (
	defaultRotations   = 3
	defaultMaxAttempts = 3
	defaultBackoffBase = time.Second
	defaultDuration    = 600
)

// Prober reports the duration of a downloaded media file.
type Prober interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// Fetcher downloads the audio track for a video, trying an ordered list of
// acquisition strategies across rotating network identities.
type Fetcher struct {
	strategies []Strategy
	rotator    *identity.Rotator
	prober     Prober
	logger     *slog.Logger

	pacer       *rate.Limiter
	rotations   int
	maxAttempts int
	backoffBase time.Duration

	sleep  func(context.Context, time.Duration) error
	jitter func() float64
	stat   func(string) (os.FileInfo, error)
	remove func(string) error
	temp   func() string
}

// New builds a production fetcher with the yt-dlp strategy first and the
// direct range download as fallback.
func New(strategies []Strategy, rotator *identity.Rotator, prober Prober, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		strategies:  strategies,
		rotator:     rotator,
		prober:      prober,
		logger:      logger,
		pacer:       rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		rotations:   defaultRotations,
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		sleep:       sleepContext,
		jitter:      rand.Float64,
		stat:        os.Stat,
		remove:      os.Remove,
		temp:        os.TempDir,
	}
}

// Fetch acquires the audio artifact for a video. Strategies are tried in
// order under each identity rotation; the recognized transient error retries
// the same strategy with exponential backoff before moving on. Partial files
// are removed on every failure path.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) (*Artifact, error) {
	var lastErr error
	attempts := 0

	for rotation := 0; rotation < f.rotations; rotation++ {
		for _, strategy := range f.strategies {
			ident := f.rotator.Next()

			artifact, err := f.attemptWithRetry(ctx, strategy, videoID, ident, &attempts)
			if err == nil {
				return artifact, nil
			}
			lastErr = err

			if ctx.Err() != nil {
				return nil, &DownloadError{VideoID: videoID, Attempts: attempts, Err: ctx.Err()}
			}
			f.logger.Warn("acquisition strategy exhausted",
				"strategy", strategy.Name(),
				"rotation", rotation,
				"proxy", ident.Proxy,
				"err", err)
		}
	}

	return nil, &DownloadError{VideoID: videoID, Attempts: attempts, Err: lastErr}
}

// attemptWithRetry runs one strategy under one identity, retrying only the
// recognized transient error up to the attempt ceiling.
func (f *Fetcher) attemptWithRetry(ctx context.Context, strategy Strategy, videoID string, ident identity.Identity, attempts *int) (*Artifact, error) {
	delay := f.backoffBase
	var lastErr error

	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if err := f.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		*attempts++
		destPath := f.artifactPath()

		duration, err := strategy.Attempt(ctx, videoID, ident, destPath)
		if err == nil {
			artifact, verifyErr := f.verify(ctx, destPath, duration)
			if verifyErr == nil {
				return artifact, nil
			}
			err = verifyErr
		}

		f.cleanupPartial(destPath)
		lastErr = err

		if !isTransient(err) {
			return nil, err
		}
		if attempt < f.maxAttempts-1 {
			f.logger.Warn("transient download error, backing off",
				"strategy", strategy.Name(),
				"attempt", attempt+1,
				"delay", delay,
				"err", err)
			if err := f.sleep(ctx, delay+time.Duration(f.jitter()*0.1*float64(delay))); err != nil {
				return nil, err
			}
			delay *= 2
		}
	}

	return nil, lastErr
}

// verify confirms the artifact exists and is non-empty, and resolves its
// duration: strategy-reported, probed, or the default when neither works.
func (f *Fetcher) verify(ctx context.Context, path string, reported float64) (*Artifact, error) {
	info, err := f.stat(path)
	if err != nil {
		return nil, fmt.Errorf("downloaded artifact missing: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("downloaded artifact is empty: %s", path)
	}

	duration := reported
	if duration <= 0 {
		probed, probeErr := f.prober.Probe(ctx, path)
		if probeErr != nil {
			f.logger.Warn("duration probe failed, assuming default",
				"path", path, "default", defaultDuration, "err", probeErr)
			probed = defaultDuration
		}
		duration = probed
	}

	return &Artifact{Path: path, DurationSeconds: duration}, nil
}

// artifactPath builds a uniquely named temporary file path per attempt.
func (f *Fetcher) artifactPath() string {
	name := fmt.Sprintf("audio_%d_%s.mp3", time.Now().UnixNano(), uuid.NewString()[:8])
	return filepath.Join(f.temp(), name)
}

// cleanupPartial removes a partially written attempt file. The download may
// have left either the final name or the pre-conversion template behind.
func (f *Fetcher) cleanupPartial(destPath string) {
	for _, path := range []string{destPath, destPath[:len(destPath)-len(filepath.Ext(destPath))]} {
		if err := f.remove(path); err != nil && !os.IsNotExist(err) {
			f.logger.Warn("cleanup of partial download failed", "path", path, "err", err)
		}
	}
}

func isTransient(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// sleepContext waits for d or until ctx is cancelled, whichever comes first,
// so backoff delays never outlive a cancelled download.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewForTests builds a fetcher with injectable clock and OS dependencies and
// no inter-attempt pacing.
func NewForTests(
	strategies []Strategy,
	rotator *identity.Rotator,
	prober Prober,
	logger *slog.Logger,
	sleep func(context.Context, time.Duration) error,
	stat func(string) (os.FileInfo, error),
	remove func(string) error,
	tempDir string,
) *Fetcher {
	f := New(strategies, rotator, prober, logger)
	f.pacer = rate.NewLimiter(rate.Inf, 1)
	f.sleep = sleep
	f.jitter = func() float64 { return 0 }
	f.stat = stat
	f.remove = remove
	f.temp = func() string { return tempDir }
	return f
}
