package config

import (
	"os"
	"path/filepath"
	"runtime"

	"tube-transcriber/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		ModelSize:    "base",
		Device:       "cpu",
		LanguageHint: "auto",
		ChunkSeconds: 120,
		MaxWorkers:   runtime.NumCPU(),
		OutputDir:    filepath.Join(homeDir, "Documents", "Transcripts"),
	}
}

// SettingsPath returns the per-user settings file location.
func SettingsPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".tube-transcriber", "settings.json")
}
