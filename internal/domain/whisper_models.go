package domain

// WhisperModelOption describes one selectable whisper model variant.
type WhisperModelOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SizeLabel   string `json:"sizeLabel,omitempty"`
	Description string `json:"description,omitempty"`
	Cached      bool   `json:"cached"`
	LocalPath   string `json:"localPath,omitempty"`
}
