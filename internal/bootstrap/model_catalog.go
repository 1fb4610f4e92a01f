package bootstrap

import (
	"os"
	"path/filepath"

	"tube-transcriber/internal/domain"
)

var whisperModelCatalog = []struct {
	id          string
	name        string
	sizeLabel   string
	description string
}{
	{"tiny.en", "Tiny (English)", "~75 MB", "Fastest, English-only model."},
	{"tiny", "Tiny (Multilingual)", "~75 MB", "Fastest multilingual model."},
	{"base.en", "Base (English)", "~142 MB", "Balanced speed/quality, English-only."},
	{"base", "Base (Multilingual)", "~142 MB", "Balanced speed/quality, multilingual."},
	{"small.en", "Small (English)", "~466 MB", "Higher quality, English-only."},
	{"small", "Small (Multilingual)", "~466 MB", "Higher quality multilingual model."},
	{"medium.en", "Medium (English)", "~1.5 GB", "High quality, English-only."},
	{"medium", "Medium (Multilingual)", "~1.5 GB", "High quality multilingual model."},
	{"large", "Large", "~2.9 GB", "Best quality multilingual model."},
	{"turbo", "Turbo", "~1.6 GB", "Fast large-model variant."},
}

// GetWhisperModels returns the selectable model variants, marking the ones the
// whisper CLI has already downloaded to its local cache.
func (a *App) GetWhisperModels() []domain.WhisperModelOption {
	return listWhisperModels(whisperCacheDir(), os.Stat)
}

// whisperCacheDir is where the whisper CLI stores downloaded model weights.
func whisperCacheDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".cache", "whisper")
}

// listWhisperModels builds the catalog and checks each variant's cache file.
func listWhisperModels(cacheDir string, stat func(string) (os.FileInfo, error)) []domain.WhisperModelOption {
	models := make([]domain.WhisperModelOption, 0, len(whisperModelCatalog))
	for _, entry := range whisperModelCatalog {
		model := domain.WhisperModelOption{
			ID:          entry.id,
			Name:        entry.name,
			SizeLabel:   entry.sizeLabel,
			Description: entry.description,
		}

		if cacheDir != "" {
			cachePath := filepath.Join(cacheDir, entry.id+".pt")
			if info, err := stat(cachePath); err == nil && !info.IsDir() && info.Size() > 0 {
				model.Cached = true
				model.LocalPath = cachePath
			}
		}
		models = append(models, model)
	}
	return models
}
