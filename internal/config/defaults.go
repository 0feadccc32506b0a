package config

import (
	"os"
	"path/filepath"

	"video-summary/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		ModelDir:        filepath.Join(homeDir, ".video-summary", "models"),
		Model:           string(domain.ModelBase),
		Language:        "auto",
		SummaryLanguage: "ko",
	}
}
