package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"testing"
	"time"

	"tube-transcriber/internal/identity"
)

// fakeStrategy replays an injected attempt function.
type fakeStrategy struct {
	name    string
	attempt func(ctx context.Context, videoID string, ident identity.Identity, destPath string) (float64, error)
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Attempt(ctx context.Context, videoID string, ident identity.Identity, destPath string) (float64, error) {
	return s.attempt(ctx, videoID, ident, destPath)
}

// fakeProber replays a canned duration.
type fakeProber struct {
	duration float64
	err      error
	calls    int
}

func (p *fakeProber) Probe(context.Context, string) (float64, error) {
	p.calls++
	return p.duration, p.err
}

// fileInfoStub satisfies os.FileInfo for stat fakes.
type fileInfoStub struct {
	size int64
}

func (s fileInfoStub) Name() string       { return "audio.mp3" }
func (s fileInfoStub) Size() int64        { return s.size }
func (s fileInfoStub) Mode() fs.FileMode  { return 0o644 }
func (s fileInfoStub) ModTime() time.Time { return time.Time{} }
func (s fileInfoStub) IsDir() bool        { return false }
func (s fileInfoStub) Sys() any           { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func statFound(string) (fs.FileInfo, error)             { return fileInfoStub{size: 1024}, nil }
func removeNothing(string) error                        { return nil }
func statMissing(string) (fs.FileInfo, error)           { return nil, fs.ErrNotExist }
func sleepNothing(context.Context, time.Duration) error { return nil }

// TestFetchSuccessUsesReportedDuration checks the happy path.
func TestFetchSuccessUsesReportedDuration(t *testing.T) {
	strategy := &fakeStrategy{
		name: "primary",
		attempt: func(_ context.Context, _ string, _ identity.Identity, _ string) (float64, error) {
			return 240, nil
		},
	}
	prober := &fakeProber{duration: 999}

	f := NewForTests([]Strategy{strategy}, identity.NewRotator(nil), prober, discardLogger(),
		sleepNothing, statFound, removeNothing, t.TempDir())

	artifact, err := f.Fetch(context.Background(), "vid123")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if artifact.DurationSeconds != 240 {
		t.Fatalf("duration = %f, want reported 240", artifact.DurationSeconds)
	}
	if prober.calls != 0 {
		t.Fatal("probe should not run when strategy reports duration")
	}
}

// TestFetchProbesWhenDurationUnknown checks the probe fallback.
func TestFetchProbesWhenDurationUnknown(t *testing.T) {
	strategy := &fakeStrategy{
		name: "primary",
		attempt: func(_ context.Context, _ string, _ identity.Identity, _ string) (float64, error) {
			return 0, nil
		},
	}
	prober := &fakeProber{duration: 321.5}

	f := NewForTests([]Strategy{strategy}, identity.NewRotator(nil), prober, discardLogger(),
		sleepNothing, statFound, removeNothing, t.TempDir())

	artifact, err := f.Fetch(context.Background(), "vid123")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if artifact.DurationSeconds != 321.5 {
		t.Fatalf("duration = %f, want probed 321.5", artifact.DurationSeconds)
	}
}

// TestFetchAssumesDefaultDurationWhenProbeFails checks the last resort value.
func TestFetchAssumesDefaultDurationWhenProbeFails(t *testing.T) {
	strategy := &fakeStrategy{
		name: "primary",
		attempt: func(_ context.Context, _ string, _ identity.Identity, _ string) (float64, error) {
			return 0, nil
		},
	}
	prober := &fakeProber{err: errors.New("ffprobe missing")}

	f := NewForTests([]Strategy{strategy}, identity.NewRotator(nil), prober, discardLogger(),
		sleepNothing, statFound, removeNothing, t.TempDir())

	artifact, err := f.Fetch(context.Background(), "vid123")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if artifact.DurationSeconds != 600 {
		t.Fatalf("duration = %f, want default 600", artifact.DurationSeconds)
	}
}

// TestFetchRetriesTransientWithBackoff checks retry count and delay growth.
func TestFetchRetriesTransientWithBackoff(t *testing.T) {
	attempts := 0
	strategy := &fakeStrategy{
		name: "primary",
		attempt: func(_ context.Context, _ string, _ identity.Identity, _ string) (float64, error) {
			attempts++
			return 0, fmt.Errorf("%w: server said 429", ErrRateLimited)
		},
	}

	var sleeps []time.Duration
	f := NewForTests([]Strategy{strategy}, identity.NewRotator(nil), &fakeProber{}, discardLogger(),
		func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}, statMissing, removeNothing, t.TempDir())

	_, err := f.Fetch(context.Background(), "vid123")
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("error = %v, want *DownloadError", err)
	}

	// 3 rotations x 1 strategy x 3 attempts each.
	if attempts != 9 {
		t.Fatalf("attempts = %d, want 9", attempts)
	}
	if dlErr.Attempts != 9 {
		t.Fatalf("reported attempts = %d, want 9", dlErr.Attempts)
	}

	// Two sleeps per exhausted retry cycle, doubling within each cycle.
	if len(sleeps) != 6 {
		t.Fatalf("sleeps = %d, want 6", len(sleeps))
	}
	for i := 0; i < len(sleeps); i += 2 {
		if sleeps[i] != time.Second || sleeps[i+1] != 2*time.Second {
			t.Fatalf("cycle delays = %v, %v; want 1s then 2s", sleeps[i], sleeps[i+1])
		}
	}
}

// TestFetchBackoffStopsOnCancel checks that a cancelled context interrupts
// the backoff wait instead of sleeping it out, and no further attempts run.
func TestFetchBackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	strategy := &fakeStrategy{
		name: "primary",
		attempt: func(_ context.Context, _ string, _ identity.Identity, _ string) (float64, error) {
			attempts++
			return 0, fmt.Errorf("%w: server said 429", ErrRateLimited)
		},
	}

	f := NewForTests([]Strategy{strategy}, identity.NewRotator(nil), &fakeProber{}, discardLogger(),
		func(c context.Context, _ time.Duration) error {
			cancel()
			return c.Err()
		}, statMissing, removeNothing, t.TempDir())

	_, err := f.Fetch(ctx, "vid123")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (backoff must not continue after cancel)", attempts)
	}
}

// TestSleepContextReturnsOnCancel checks the production backoff wait does not
// outlive its context.
func TestSleepContextReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("sleep took %s, want immediate return", elapsed)
	}
}

// TestFetchDoesNotRetryPermanentErrors checks fast strategy advancement.
func TestFetchDoesNotRetryPermanentErrors(t *testing.T) {
	attempts := 0
	strategy := &fakeStrategy{
		name: "primary",
		attempt: func(_ context.Context, _ string, _ identity.Identity, _ string) (float64, error) {
			attempts++
			return 0, errors.New("video is private")
		},
	}

	f := NewForTests([]Strategy{strategy}, identity.NewRotator(nil), &fakeProber{}, discardLogger(),
		sleepNothing, statMissing, removeNothing, t.TempDir())

	if _, err := f.Fetch(context.Background(), "vid123"); err == nil {
		t.Fatal("expected failure")
	}
	// One attempt per rotation, no in-strategy retries.
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

// TestFetchRotatesIdentitiesAcrossStrategies checks proxy rotation order.
func TestFetchRotatesIdentitiesAcrossStrategies(t *testing.T) {
	var proxies []string
	strategy := &fakeStrategy{
		name: "primary",
		attempt: func(_ context.Context, _ string, ident identity.Identity, _ string) (float64, error) {
			proxies = append(proxies, ident.Proxy)
			return 0, errors.New("nope")
		},
	}

	rotator := identity.NewRotator([]string{"http://proxy-a:8080", "http://proxy-b:8080"})
	f := NewForTests([]Strategy{strategy}, rotator, &fakeProber{}, discardLogger(),
		sleepNothing, statMissing, removeNothing, t.TempDir())

	_, _ = f.Fetch(context.Background(), "vid123")

	want := []string{"", "http://proxy-a:8080", "http://proxy-b:8080"}
	if len(proxies) != len(want) {
		t.Fatalf("proxies seen = %v, want %v", proxies, want)
	}
	for i := range want {
		if proxies[i] != want[i] {
			t.Fatalf("rotation %d proxy = %q, want %q", i, proxies[i], want[i])
		}
	}
}

// TestFetchCleansUpPartialFiles checks removal of both artifact name forms.
func TestFetchCleansUpPartialFiles(t *testing.T) {
	strategy := &fakeStrategy{
		name: "primary",
		attempt: func(_ context.Context, _ string, _ identity.Identity, _ string) (float64, error) {
			return 0, errors.New("interrupted")
		},
	}

	var removed []string
	f := NewForTests([]Strategy{strategy}, identity.NewRotator(nil), &fakeProber{}, discardLogger(),
		sleepNothing, statMissing,
		func(path string) error {
			removed = append(removed, path)
			return nil
		}, t.TempDir())

	_, _ = f.Fetch(context.Background(), "vid123")

	if len(removed) == 0 {
		t.Fatal("expected cleanup removals")
	}
	sawFinal := false
	sawTemplate := false
	for _, path := range removed {
		if strings.HasSuffix(path, ".mp3") {
			sawFinal = true
		} else {
			sawTemplate = true
		}
	}
	if !sawFinal || !sawTemplate {
		t.Fatalf("cleanup should cover final and template names, got %v", removed)
	}
}

// TestFetchRejectsEmptyArtifact checks the zero-byte verification path.
func TestFetchRejectsEmptyArtifact(t *testing.T) {
	strategy := &fakeStrategy{
		name: "primary",
		attempt: func(_ context.Context, _ string, _ identity.Identity, _ string) (float64, error) {
			return 100, nil
		},
	}

	f := NewForTests([]Strategy{strategy}, identity.NewRotator(nil), &fakeProber{}, discardLogger(),
		sleepNothing,
		func(string) (fs.FileInfo, error) { return fileInfoStub{size: 0}, nil },
		removeNothing, t.TempDir())

	if _, err := f.Fetch(context.Background(), "vid123"); err == nil {
		t.Fatal("expected empty-artifact failure")
	}
}
