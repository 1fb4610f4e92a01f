package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tube-transcriber/internal/cmdrun"
	"tube-transcriber/internal/domain"
)

const (
	apiKeyEnv      = "YOUTUBE_API_KEY"
	videosEndpoint = "https://www.googleapis.com/youtube/v3/videos"
)

// MetadataClient resolves video metadata. The structured API is preferred when
// a credential is present in the environment; yt-dlp extraction is the
// fallback, and a placeholder record covers both sources failing.
type MetadataClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	runner     cmdrun.Runner
	logger     *slog.Logger
}

// NewMetadataClient builds a client reading the optional API credential from
// the process environment.
func NewMetadataClient(runner cmdrun.Runner, logger *slog.Logger) *MetadataClient {
	return &MetadataClient{
		apiKey:     os.Getenv(apiKeyEnv),
		endpoint:   videosEndpoint,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		runner:     runner,
		logger:     logger,
	}
}

// VideoInfo resolves metadata for a video id. It never fails: source errors
// degrade to a placeholder record derived from the id.
func (c *MetadataClient) VideoInfo(ctx context.Context, videoID string) domain.VideoInfo {
	if c.apiKey != "" {
		info, err := c.fromAPI(ctx, videoID)
		if err == nil {
			return info
		}
		c.logger.Warn("metadata api lookup failed, falling back to extraction",
			"videoID", videoID, "err", err)
	}

	info, err := c.fromExtractor(ctx, videoID)
	if err == nil {
		return info
	}
	c.logger.Warn("metadata extraction failed, using placeholder",
		"videoID", videoID, "err", err)

	return placeholderInfo(videoID)
}

// apiVideosResponse mirrors the subset of the Data API v3 videos response we read.
type apiVideosResponse struct {
	Items []struct {
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

func (c *MetadataClient) fromAPI(ctx context.Context, videoID string) (domain.VideoInfo, error) {
	query := url.Values{}
	query.Set("id", videoID)
	query.Set("part", "snippet,contentDetails")
	query.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return domain.VideoInfo{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.VideoInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.VideoInfo{}, fmt.Errorf("videos endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.VideoInfo{}, err
	}

	var decoded apiVideosResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return domain.VideoInfo{}, fmt.Errorf("decode videos response: %w", err)
	}
	if len(decoded.Items) == 0 {
		return domain.VideoInfo{}, fmt.Errorf("no metadata item for video %s", videoID)
	}

	item := decoded.Items[0]
	return domain.VideoInfo{
		ID:              videoID,
		Title:           item.Snippet.Title,
		Author:          item.Snippet.ChannelTitle,
		DurationSeconds: parseISODuration(item.ContentDetails.Duration),
		ThumbnailURL:    item.Snippet.Thumbnails.High.URL,
	}, nil
}

// extractorDump mirrors the yt-dlp -J fields we read.
type extractorDump struct {
	Title     string  `json:"title"`
	Uploader  string  `json:"uploader"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
}

func (c *MetadataClient) fromExtractor(ctx context.Context, videoID string) (domain.VideoInfo, error) {
	result, err := c.runner.Run(ctx, "yt-dlp",
		"-J",
		"--no-warnings",
		"--no-playlist",
		WatchURL(videoID),
	)
	if err != nil {
		return domain.VideoInfo{}, fmt.Errorf("yt-dlp metadata dump failed (exit %d): %w", result.ExitCode, err)
	}

	var dump extractorDump
	if err := json.Unmarshal([]byte(result.Stdout), &dump); err != nil {
		return domain.VideoInfo{}, fmt.Errorf("decode yt-dlp dump: %w", err)
	}

	info := placeholderInfo(videoID)
	if strings.TrimSpace(dump.Title) != "" {
		info.Title = dump.Title
	}
	if strings.TrimSpace(dump.Uploader) != "" {
		info.Author = dump.Uploader
	}
	if dump.Duration > 0 {
		info.DurationSeconds = int(dump.Duration)
	}
	if strings.TrimSpace(dump.Thumbnail) != "" {
		info.ThumbnailURL = dump.Thumbnail
	}
	return info, nil
}

// placeholderInfo is the minimal record used when every source fails.
func placeholderInfo(videoID string) domain.VideoInfo {
	return domain.VideoInfo{
		ID:           videoID,
		Title:        fmt.Sprintf("Video %s", videoID),
		Author:       "Unknown Author",
		ThumbnailURL: fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoID),
	}
}

var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts an ISO-8601 duration like PT1H2M3S to seconds.
// Malformed input yields zero, matching the placeholder record.
func parseISODuration(raw string) int {
	match := isoDurationPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if match == nil {
		return 0
	}

	seconds := 0
	for i, multiplier := range []int{3600, 60, 1} {
		if match[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(match[i+1])
		if err != nil {
			return 0
		}
		seconds += n * multiplier
	}
	return seconds
}

// NewMetadataClientForTests builds a client with injectable dependencies.
func NewMetadataClientForTests(apiKey string, httpClient *http.Client, runner cmdrun.Runner, logger *slog.Logger) *MetadataClient {
	return &MetadataClient{
		apiKey:     apiKey,
		endpoint:   videosEndpoint,
		httpClient: httpClient,
		runner:     runner,
		logger:     logger,
	}
}
