package youtube

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidReference is returned when a URL matches no known video URL shape.
var ErrInvalidReference = errors.New("invalid youtube url")

// Known URL shapes: watch?v=, youtu.be/, embed/, a watch URL with extra query
// parameters before v=, and shorts/.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&?/]+)`),
	regexp.MustCompile(`youtube\.com/watch\?.*v=([^&]+)`),
	regexp.MustCompile(`youtube\.com/shorts/([^&?/]+)`),
}

var videoIDShape = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ExtractVideoID derives the opaque video identifier from a YouTube URL.
func ExtractVideoID(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidReference)
	}

	for _, pattern := range referencePatterns {
		match := pattern.FindStringSubmatch(trimmed)
		if len(match) < 2 {
			continue
		}
		id := match[1]
		if videoIDShape.MatchString(id) {
			return id, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrInvalidReference, trimmed)
}

// WatchURL builds the canonical watch URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
