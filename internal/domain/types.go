package domain

// JobStatus tracks each pipeline stage for a single transcript job.
type JobStatus string

const (
	JobStatusIdle         JobStatus = "idle"
	JobStatusFetching     JobStatus = "fetching"
	JobStatusDownloading  JobStatus = "downloading"
	JobStatusTranscribing JobStatus = "transcribing"
	JobStatusTranslating  JobStatus = "translating"
	JobStatusDone         JobStatus = "done"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCancelled    JobStatus = "cancelled"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelSize        string   `json:"modelSize"`
	Device           string   `json:"device"`
	LanguageHint     string   `json:"languageHint"`
	ChunkSeconds     int      `json:"chunkSeconds"`
	MaxWorkers       int      `json:"maxWorkers"`
	OutputDir        string   `json:"outputDir"`
	Proxies          []string `json:"proxies"`
	TranslationModel string   `json:"translationModel"`
}

// Job stores the current job identity and lifecycle status.
type Job struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
}

// VideoInfo is the metadata record shown before a transcript is generated.
type VideoInfo struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	DurationSeconds int    `json:"durationSeconds"`
	ThumbnailURL    string `json:"thumbnailUrl"`
}
