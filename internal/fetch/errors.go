package fetch

import (
	"errors"
	"fmt"
)

// ErrRateLimited is the recognized transient error signal. Strategies wrap it
// when the platform answers with a rate-limit response; the fetcher retries
// the same strategy with backoff before rotating identities.
var ErrRateLimited = errors.New("rate limited")

// DownloadError reports exhaustion of all strategies and identities, carrying
// the last underlying cause.
type DownloadError struct {
	VideoID  string
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed for %s after %d attempts: %v", e.VideoID, e.Attempts, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
