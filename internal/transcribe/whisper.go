package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"tube-transcriber/internal/cmdrun"
)

// knownModelSizes are the whisper CLI model variants we accept.
var knownModelSizes = []string{
	"tiny", "tiny.en",
	"base", "base.en",
	"small", "small.en",
	"medium", "medium.en",
	"large", "turbo",
}

// Transcriber converts an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// WhisperTranscriber runs the whisper CLI. The tool and model configuration
// are resolved once on first use and cached for the process lifetime; each
// invocation owns its own process memory, so no in-process model state is
// shared between concurrent segment workers.
type WhisperTranscriber struct {
	whisperPath  string
	modelSize    string
	device       string
	languageHint string

	loadOnce sync.Once
	loadErr  error

	runner    cmdrun.Runner
	lookPath  func(string) (string, error)
	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(string) error
	readFile  func(string) ([]byte, error)
}

// NewWhisperTranscriber builds a production transcriber.
func NewWhisperTranscriber(modelSize, device, languageHint string) *WhisperTranscriber {
	return &WhisperTranscriber{
		whisperPath:  "whisper",
		modelSize:    modelSize,
		device:       device,
		languageHint: languageHint,
		runner:       cmdrun.New(),
		lookPath:     exec.LookPath,
		mkdirTemp:    os.MkdirTemp,
		removeAll:    os.RemoveAll,
		readFile:     os.ReadFile,
	}
}

// ensureLoaded resolves the CLI and validates the model variant, once.
func (t *WhisperTranscriber) ensureLoaded() error {
	t.loadOnce.Do(func() {
		if _, err := t.lookPath(t.whisperPath); err != nil {
			t.loadErr = fmt.Errorf("whisper tool not available: %w", err)
			return
		}
		if t.modelSize == "" {
			t.modelSize = "base"
		}
		if !isKnownModelSize(t.modelSize) {
			t.loadErr = fmt.Errorf("unknown whisper model variant: %s", t.modelSize)
			return
		}
		if t.device == "" {
			t.device = "cpu"
		}
	})
	return t.loadErr
}

// Transcribe runs the model over one audio file and returns its text.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if err := t.ensureLoaded(); err != nil {
		return "", err
	}

	outDir, err := t.mkdirTemp("", "tube-transcriber-whisper-*")
	if err != nil {
		return "", fmt.Errorf("create whisper output dir: %w", err)
	}
	defer func() {
		_ = t.removeAll(outDir)
	}()

	args := buildWhisperArgs(audioPath, t.modelSize, t.device, t.languageHint, outDir)
	result, err := t.runner.Run(ctx, t.whisperPath, args...)
	if err != nil {
		return "", fmt.Errorf("whisper invocation failed (exit %d): %w: %s",
			result.ExitCode, err, lastLine(result.Stderr))
	}

	textPath := filepath.Join(outDir, transcriptBaseName(audioPath)+".txt")
	content, err := t.readFile(textPath)
	if err != nil {
		return "", fmt.Errorf("whisper completed but transcript file is missing: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}

// buildWhisperArgs builds the model invocation: size variant, compute device,
// forced 32-bit precision, optional spoken-language hint, transcribe task.
func buildWhisperArgs(audioPath, modelSize, device, languageHint, outDir string) []string {
	args := []string{
		audioPath,
		"--model", modelSize,
		"--device", device,
		"--fp16", "False",
		"--task", "transcribe",
		"--output_format", "txt",
		"--output_dir", outDir,
		"--verbose", "False",
	}
	if languageHint != "" && !strings.EqualFold(languageHint, "auto") {
		args = append(args, "--language", languageHint)
	}
	return args
}

// transcriptBaseName mirrors whisper's output naming: input base, no extension.
func transcriptBaseName(audioPath string) string {
	base := filepath.Base(audioPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isKnownModelSize(size string) bool {
	for _, known := range knownModelSizes {
		if size == known {
			return true
		}
	}
	return false
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// NewWhisperTranscriberForTests builds a transcriber with injectable deps.
func NewWhisperTranscriberForTests(
	modelSize string,
	runner cmdrun.Runner,
	lookPath func(string) (string, error),
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(string) error,
	readFile func(string) ([]byte, error),
) *WhisperTranscriber {
	return &WhisperTranscriber{
		whisperPath: "whisper",
		modelSize:   modelSize,
		device:      "cpu",
		runner:      runner,
		lookPath:    lookPath,
		mkdirTemp:   mkdirTemp,
		removeAll:   removeAll,
		readFile:    readFile,
	}
}
