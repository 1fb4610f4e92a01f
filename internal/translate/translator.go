package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxChunkChars is the backend's per-request character limit, minus one.
const maxChunkChars = 4999

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = time.Second
	chunkInterval      = 500 * time.Millisecond
)

var (
	// ErrEmptyInput is returned for input that is empty after trimming.
	ErrEmptyInput = errors.New("translation input is empty")
	// ErrUnsupportedLanguage is returned for codes outside the supported set.
	ErrUnsupportedLanguage = errors.New("unsupported target language")
	// ErrTranslationFailed is returned for backend failures, including empty
	// backend output and exhausted network retries.
	ErrTranslationFailed = errors.New("translation failed")
)

// Backend is the underlying translation capability.
type Backend interface {
	Translate(ctx context.Context, text, targetCode string) (string, error)
}

// Translator validates, chunks, and translates text into a target language.
type Translator struct {
	backend Backend
	logger  *slog.Logger

	maxAttempts int
	backoffBase time.Duration
	pacer       *rate.Limiter
	sleep       func(time.Duration)
}

// NewTranslator builds a production translator over the given backend.
func NewTranslator(backend Backend, logger *slog.Logger) *Translator {
	return &Translator{
		backend:     backend,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		pacer:       rate.NewLimiter(rate.Every(chunkInterval), 1),
		sleep:       time.Sleep,
	}
}

// Translate converts text into the target language. The identity target
// returns the trimmed input with no backend call. The whole operation is
// retried with exponential backoff only on network-transport errors.
func (t *Translator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyInput
	}
	if !IsSupported(targetLang) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, targetLang)
	}
	if targetLang == IdentityLanguage {
		return trimmed, nil
	}

	chunks := splitChunks(trimmed, maxChunkChars)
	target := backendCode(targetLang)

	delay := t.backoffBase
	var lastErr error
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		result, err := t.translateChunks(ctx, chunks, target)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isNetworkError(err) {
			return "", err
		}
		if attempt < t.maxAttempts-1 {
			t.logger.Warn("transient network error during translation, retrying",
				"attempt", attempt+1, "delay", delay, "err", err)
			t.sleep(delay)
			delay *= 2
		}
	}

	return "", fmt.Errorf("%w: %v", ErrTranslationFailed, lastErr)
}

// translateChunks translates every chunk in order, pacing requests when more
// than one chunk is in play, and rejoins results with single spaces. Chunk
// boundaries are character-based, so original whitespace at boundaries is not
// preserved.
func (t *Translator) translateChunks(ctx context.Context, chunks []string, target string) (string, error) {
	results := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunks) > 1 {
			if err := t.pacer.Wait(ctx); err != nil {
				return "", err
			}
		}

		out, err := t.backend.Translate(ctx, chunk, target)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", fmt.Errorf("%w: backend produced no result", ErrTranslationFailed)
		}
		results = append(results, strings.TrimSpace(out))
	}

	return strings.Join(results, " "), nil
}

// splitChunks slices text into runs of at most limit characters. Boundaries
// fall on rune boundaries so multi-byte text is never cut mid-character; no
// word-boundary awareness is applied.
func splitChunks(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	chunks := make([]string, 0, len(runes)/limit+1)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// isNetworkError recognizes transport-level failures worth retrying.
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// NewTranslatorForTests builds a translator with no pacing delay and an
// injectable sleep.
func NewTranslatorForTests(backend Backend, logger *slog.Logger, sleep func(time.Duration)) *Translator {
	t := NewTranslator(backend, logger)
	t.pacer = rate.NewLimiter(rate.Inf, 1)
	t.sleep = sleep
	return t
}
