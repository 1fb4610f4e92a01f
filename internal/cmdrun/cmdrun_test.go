package cmdrun

import (
	"context"
	"strings"
	"testing"
)

// TestRunCapturesStdout checks output capture on success.
func TestRunCapturesStdout(t *testing.T) {
	result, err := New().Run(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Fatalf("stdout = %q, want hello", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", result.ExitCode)
	}
}

// TestRunReportsExitCode checks non-zero exit handling.
func TestRunReportsExitCode(t *testing.T) {
	result, err := New().Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	if err == nil {
		t.Fatal("expected error")
	}
	if result.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", result.ExitCode)
	}
	if strings.TrimSpace(result.Stderr) != "oops" {
		t.Fatalf("stderr = %q, want oops", result.Stderr)
	}
}

// TestRunHonorsContextCancellation checks the context kill path.
func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New().Run(ctx, "sh", "-c", "sleep 5"); err == nil {
		t.Fatal("expected cancellation error")
	}
}
