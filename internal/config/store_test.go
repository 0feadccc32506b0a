package config

import (
	"os"
	"path/filepath"
	"testing"

	"video-summary/internal/domain"
)

// TestLoadMissingFileReturnsDefaults checks first-launch behavior.
func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "settings.json"))

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Model != string(domain.ModelBase) {
		t.Fatalf("model = %q, want base", cfg.Model)
	}
	if cfg.Language != "auto" {
		t.Fatalf("language = %q, want auto", cfg.Language)
	}
	if cfg.SummaryLanguage != "ko" {
		t.Fatalf("summary language = %q, want ko", cfg.SummaryLanguage)
	}
	if cfg.ModelDir == "" {
		t.Fatal("model dir is empty")
	}
	if cfg.OpenAIAPIKey != "" {
		t.Fatalf("api key = %q, want empty default", cfg.OpenAIAPIKey)
	}
}

// TestSaveThenLoadRoundTrip checks persistence.
func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "settings.json")
	store := NewJSONStore(path)

	want := domain.Settings{
		ModelDir:        "/data/models",
		Model:           "small",
		Language:        "ko",
		SummaryLanguage: "en",
		OpenAIAPIKey:    "sk-test",
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("loaded = %+v, want %+v", got, want)
	}
}

// TestSaveRestrictsFilePermissions checks that the settings file is not
// world readable since it carries the API key.
func TestSaveRestrictsFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewJSONStore(path)

	if err := store.Save(DefaultSettings()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat settings: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("permissions = %o, want 600", perm)
	}
}

// TestLoadInvalidJSONFails checks corrupt file handling.
func TestLoadInvalidJSONFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	if _, err := NewJSONStore(path).Load(); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
