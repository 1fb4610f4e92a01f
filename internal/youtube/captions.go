package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNoCaptions is returned when a video has no usable caption track. Callers
// treat every caption failure as this condition; caption lookup is never fatal.
var ErrNoCaptions = errors.New("no captions available")

const captionKindAuto = "asr"

// CaptionTrack describes one platform-supplied timed text track.
type CaptionTrack struct {
	BaseURL      string
	LanguageCode string
	Kind         string
	Name         string
}

// IsAutoGenerated reports whether the track was machine generated.
func (t CaptionTrack) IsAutoGenerated() bool {
	return t.Kind == captionKindAuto
}

// CaptionEntry is one timed caption line.
type CaptionEntry struct {
	Text     string
	Start    float64
	Duration float64
}

// CaptionClient fetches caption tracks by scraping the public watch page.
type CaptionClient struct {
	get       func(ctx context.Context, url, userAgent string) ([]byte, error)
	userAgent string
}

// NewCaptionClient builds a caption client with a production HTTP getter.
func NewCaptionClient(userAgent string) *CaptionClient {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	return &CaptionClient{
		userAgent: userAgent,
		get: func(ctx context.Context, url, userAgent string) ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("User-Agent", userAgent)
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")

			resp, err := httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
			}
			return io.ReadAll(resp.Body)
		},
	}
}

// Transcript returns the normalized text of the preferred caption track.
// Any failure along the way is reported as ErrNoCaptions.
func (c *CaptionClient) Transcript(ctx context.Context, videoID string) (string, error) {
	tracks, err := c.listTracks(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCaptions, err)
	}

	track, ok := selectPreferredTrack(tracks)
	if !ok {
		return "", ErrNoCaptions
	}

	entries, err := c.fetchTrack(ctx, track)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCaptions, err)
	}

	text := normalizeEntries(entries)
	if text == "" {
		return "", ErrNoCaptions
	}
	return text, nil
}

// playerCaptionTrack mirrors the captionTracks JSON embedded in the watch page.
type playerCaptionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
	Name         struct {
		SimpleText string `json:"simpleText"`
		Runs       []struct {
			Text string `json:"text"`
		} `json:"runs"`
	} `json:"name"`
}

// listTracks scrapes the watch page and decodes its caption track list.
func (c *CaptionClient) listTracks(ctx context.Context, videoID string) ([]CaptionTrack, error) {
	body, err := c.get(ctx, WatchURL(videoID), c.userAgent)
	if err != nil {
		return nil, fmt.Errorf("fetch watch page: %w", err)
	}

	const marker = `"captionTracks":`
	idx := strings.Index(string(body), marker)
	if idx < 0 {
		return nil, errors.New("watch page contains no caption tracks")
	}

	decoder := json.NewDecoder(strings.NewReader(string(body[idx+len(marker):])))
	var raw []playerCaptionTrack
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode caption track list: %w", err)
	}

	tracks := make([]CaptionTrack, 0, len(raw))
	for _, t := range raw {
		if t.BaseURL == "" {
			continue
		}
		name := t.Name.SimpleText
		if name == "" && len(t.Name.Runs) > 0 {
			name = t.Name.Runs[0].Text
		}
		tracks = append(tracks, CaptionTrack{
			BaseURL:      t.BaseURL,
			LanguageCode: t.LanguageCode,
			Kind:         t.Kind,
			Name:         name,
		})
	}
	if len(tracks) == 0 {
		return nil, errors.New("caption track list is empty")
	}
	return tracks, nil
}

// timedTextDocument mirrors the timedtext XML served at a track's base URL.
type timedTextDocument struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []struct {
		Start    float64 `xml:"start,attr"`
		Duration float64 `xml:"dur,attr"`
		Body     string  `xml:",chardata"`
	} `xml:"text"`
}

// fetchTrack downloads and decodes the timedtext payload for one track.
func (c *CaptionClient) fetchTrack(ctx context.Context, track CaptionTrack) ([]CaptionEntry, error) {
	body, err := c.get(ctx, track.BaseURL, c.userAgent)
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}

	var doc timedTextDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode timedtext: %w", err)
	}

	entries := make([]CaptionEntry, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Body))
		if text == "" {
			continue
		}
		entries = append(entries, CaptionEntry{
			Text:     text,
			Start:    t.Start,
			Duration: t.Duration,
		})
	}
	return entries, nil
}

// selectPreferredTrack picks a track by preference: manually-created English,
// auto-generated English, any manually-created track, any auto-generated track.
func selectPreferredTrack(tracks []CaptionTrack) (CaptionTrack, bool) {
	type match func(CaptionTrack) bool
	preferences := []match{
		func(t CaptionTrack) bool { return isEnglish(t.LanguageCode) && !t.IsAutoGenerated() },
		func(t CaptionTrack) bool { return isEnglish(t.LanguageCode) && t.IsAutoGenerated() },
		func(t CaptionTrack) bool { return !t.IsAutoGenerated() },
		func(t CaptionTrack) bool { return t.IsAutoGenerated() },
	}

	for _, preferred := range preferences {
		for _, track := range tracks {
			if preferred(track) {
				return track, true
			}
		}
	}
	return CaptionTrack{}, false
}

// isEnglish matches "en" and regional variants like "en-US".
func isEnglish(code string) bool {
	lower := strings.ToLower(code)
	return lower == "en" || strings.HasPrefix(lower, "en-")
}

// normalizeEntries joins caption lines into sentence-like text, appending a
// period to entries without terminal punctuation.
func normalizeEntries(entries []CaptionEntry) string {
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") {
			text += "."
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

// NewCaptionClientForTests builds a caption client with an injectable getter.
func NewCaptionClientForTests(get func(ctx context.Context, url, userAgent string) ([]byte, error)) *CaptionClient {
	return &CaptionClient{get: get, userAgent: "test-agent"}
}
