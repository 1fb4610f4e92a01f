package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tube-transcriber/internal/cmdrun"
	"tube-transcriber/internal/identity"
	"tube-transcriber/internal/youtube"
)

// Strategy is one acquisition variant. Attempt downloads the audio track for
// a video into destPath using the given network identity and reports the
// media duration in seconds, or zero when the strategy cannot tell.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, videoID string, ident identity.Identity, destPath string) (float64, error)
}

// rateLimitSignals are substrings of tool/server output recognized as the
// transient rate-limit error.
var rateLimitSignals = []string{
	"HTTP Error 403",
	"HTTP Error 429",
	"Too Many Requests",
}

func isRateLimitOutput(output string) bool {
	for _, signal := range rateLimitSignals {
		if strings.Contains(output, signal) {
			return true
		}
	}
	return false
}

// ytdlpStrategy is the primary acquisition path: structured extraction and
// download through yt-dlp with post-conversion to mp3.
type ytdlpStrategy struct {
	runner      cmdrun.Runner
	cookiesPath string
}

// NewYtdlpStrategy builds the primary strategy. The cookie store lives under
// the per-user config directory and is created empty when absent.
func NewYtdlpStrategy(runner cmdrun.Runner) *ytdlpStrategy {
	return &ytdlpStrategy{
		runner:      runner,
		cookiesPath: ensureCookieStore(),
	}
}

func (s *ytdlpStrategy) Name() string { return "yt-dlp" }

func (s *ytdlpStrategy) Attempt(ctx context.Context, videoID string, ident identity.Identity, destPath string) (float64, error) {
	args := buildYtdlpArgs(videoID, ident, destPath, s.cookiesPath)

	result, err := s.runner.Run(ctx, "yt-dlp", args...)
	if err != nil {
		output := result.Stdout + result.Stderr
		if isRateLimitOutput(output) {
			return 0, fmt.Errorf("%w: yt-dlp: %v", ErrRateLimited, err)
		}
		return 0, fmt.Errorf("yt-dlp failed (exit %d): %w: %s", result.ExitCode, err, stderrTail(result.Stderr))
	}

	return parseReportedDuration(result.Stdout), nil
}

// buildYtdlpArgs builds the downloader invocation: best audio, mp3 at a fixed
// bitrate, browser headers, optional proxy, relaxed certificate checks, geo
// bypass, and a persisted cookie store.
func buildYtdlpArgs(videoID string, ident identity.Identity, destPath, cookiesPath string) []string {
	// yt-dlp appends the post-conversion extension itself.
	template := strings.TrimSuffix(destPath, filepath.Ext(destPath))

	args := []string{
		"-f", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"-o", template,
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"--no-simulate",
		"--print", "duration",
		"--user-agent", ident.UserAgent,
		"--add-headers", "Accept:text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"--add-headers", "Accept-Language:en-us,en;q=0.5",
		"--no-check-certificates",
		"--geo-bypass",
	}
	if cookiesPath != "" {
		args = append(args, "--cookies", cookiesPath)
	}
	if ident.Proxy != "" {
		args = append(args, "--proxy", ident.Proxy)
	}

	return append(args, youtube.WatchURL(videoID))
}

// parseReportedDuration reads the duration yt-dlp printed, zero when absent.
func parseReportedDuration(stdout string) float64 {
	for _, line := range strings.Split(stdout, "\n") {
		value, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err == nil && value > 0 {
			return value
		}
	}
	return 0
}

// httpRangeStrategy is the fallback path: resolve a direct media URL, then
// stream it to disk with a range GET through the attempt's identity.
type httpRangeStrategy struct {
	runner    cmdrun.Runner
	newClient func(proxy string) *http.Client
}

// NewHTTPRangeStrategy builds the fallback strategy.
func NewHTTPRangeStrategy(runner cmdrun.Runner) *httpRangeStrategy {
	return &httpRangeStrategy{
		runner:    runner,
		newClient: newProxyClient,
	}
}

func (s *httpRangeStrategy) Name() string { return "http-range" }

func (s *httpRangeStrategy) Attempt(ctx context.Context, videoID string, ident identity.Identity, destPath string) (float64, error) {
	mediaURL, err := s.resolveMediaURL(ctx, videoID, ident)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build range request: %w", err)
	}
	req.Header.Set("User-Agent", ident.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-us,en;q=0.5")
	req.Header.Set("Range", "bytes=0-")

	resp, err := s.newClient(ident.Proxy).Do(req)
	if err != nil {
		return 0, fmt.Errorf("range request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusForbidden, http.StatusTooManyRequests:
		return 0, fmt.Errorf("%w: media server returned status %d", ErrRateLimited, resp.StatusCode)
	default:
		return 0, fmt.Errorf("media server returned status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("create artifact file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return 0, fmt.Errorf("stream media to disk: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close artifact file: %w", err)
	}

	// Direct streams carry no duration metadata we can trust here.
	return 0, nil
}

// resolveMediaURL asks the downloader tool for the direct best-audio URL.
func (s *httpRangeStrategy) resolveMediaURL(ctx context.Context, videoID string, ident identity.Identity) (string, error) {
	args := []string{
		"-f", "bestaudio",
		"-g",
		"--no-warnings",
		"--no-playlist",
		"--user-agent", ident.UserAgent,
	}
	if ident.Proxy != "" {
		args = append(args, "--proxy", ident.Proxy)
	}
	args = append(args, youtube.WatchURL(videoID))

	result, err := s.runner.Run(ctx, "yt-dlp", args...)
	if err != nil {
		output := result.Stdout + result.Stderr
		if isRateLimitOutput(output) {
			return "", fmt.Errorf("%w: url resolution: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("resolve media url (exit %d): %w", result.ExitCode, err)
	}

	mediaURL := strings.TrimSpace(strings.Split(result.Stdout, "\n")[0])
	if mediaURL == "" {
		return "", errors.New("url resolution produced no output")
	}
	return mediaURL, nil
}

// newProxyClient builds an HTTP client honoring the attempt's proxy. The
// platform's media endpoints are served through rotating certificate chains,
// so verification stays off, matching the downloader configuration.
func newProxyClient(proxy string) *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   10 * time.Minute,
	}
}

// ensureCookieStore creates the persisted cookie file under the per-user
// config directory when absent. Failure degrades to cookie-less downloads.
func ensureCookieStore() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	dir := filepath.Join(configDir, "tube-transcriber")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}

	path := filepath.Join(dir, "cookies.txt")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if writeErr := os.WriteFile(path, []byte("# Netscape HTTP Cookie File\n"), 0o644); writeErr != nil {
			return ""
		}
	}
	return path
}

// stderrTail keeps the last non-empty line of stderr for error messages.
func stderrTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
