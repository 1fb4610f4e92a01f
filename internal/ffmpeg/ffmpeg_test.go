package ffmpeg

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tube-transcriber/internal/cmdrun"
)

// fakeRunner replays canned command results.
type fakeRunner struct {
	result cmdrun.Result
	err    error
	calls  [][]string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (cmdrun.Result, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.result, r.err
}

// TestProbeParsesDuration checks duration extraction from ffprobe output.
func TestProbeParsesDuration(t *testing.T) {
	runner := &fakeRunner{result: cmdrun.Result{Stdout: "123.456\n"}}
	tool := NewToolForTests("ffmpeg", "ffprobe", runner)

	got, err := tool.Probe(context.Background(), "/tmp/audio.mp3")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if got != 123.456 {
		t.Fatalf("duration = %f, want 123.456", got)
	}

	call := runner.calls[0]
	if call[0] != "ffprobe" {
		t.Fatalf("command = %q, want ffprobe", call[0])
	}
	joined := strings.Join(call, " ")
	if !strings.Contains(joined, "format=duration") {
		t.Fatalf("probe args missing duration entry: %v", call)
	}
}

// TestProbeRejectsUnparseableOutput checks malformed ffprobe output.
func TestProbeRejectsUnparseableOutput(t *testing.T) {
	runner := &fakeRunner{result: cmdrun.Result{Stdout: "N/A\n"}}
	tool := NewToolForTests("ffmpeg", "ffprobe", runner)

	if _, err := tool.Probe(context.Background(), "/tmp/audio.mp3"); err == nil {
		t.Fatal("expected parse error")
	}
}

// TestSplitUsesStreamCopy checks the segment invocation shape.
func TestSplitUsesStreamCopy(t *testing.T) {
	runner := &fakeRunner{}
	tool := NewToolForTests("ffmpeg", "ffprobe", runner)

	if err := tool.Split(context.Background(), "/tmp/src.mp3", 120, 120, "/tmp/seg.mp3"); err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	call := runner.calls[0]
	if call[0] != "ffmpeg" {
		t.Fatalf("command = %q, want ffmpeg", call[0])
	}
	joined := strings.Join(call, " ")
	for _, fragment := range []string{"-ss 120.000", "-t 120.000", "-i /tmp/src.mp3", "-vn", "-c copy", "/tmp/seg.mp3"} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("split args missing %q: %v", fragment, call)
		}
	}
}

// TestSplitFailureReturnsSegmentationError checks error wrapping.
func TestSplitFailureReturnsSegmentationError(t *testing.T) {
	runner := &fakeRunner{
		result: cmdrun.Result{ExitCode: 1, Stderr: "something broke\nInvalid data found"},
		err:    errors.New("exit status 1"),
	}
	tool := NewToolForTests("ffmpeg", "ffprobe", runner)

	err := tool.Split(context.Background(), "/tmp/src.mp3", 0, 120, "/tmp/seg.mp3")
	if !errors.Is(err, ErrSegmentation) {
		t.Fatalf("error = %v, want %v", err, ErrSegmentation)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("error should carry stderr tail: %v", err)
	}
}
