// Package diagnostics validates external tools and required filesystem
// paths before a run starts.
package diagnostics

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"video-summary/internal/domain"
)

// Checker validates the recognizer binary, the model cache, and
// credential presence.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// NewCheckerForTests creates a checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("whisper-cli"),
		c.checkModelDir(settings.ModelDir),
		c.checkSelectedModel(settings),
		c.checkAPIKey(settings.OpenAIAPIKey),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies the recognizer executable is on PATH.
func (c *Checker) checkTool(name string) domain.DiagnosticItem {
	path, err := c.lookPath(name)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      "tool_" + name,
			Name:    name,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found in PATH: %s", name),
			Hint:    "Install whisper.cpp and ensure the binary is available on PATH before starting a run.",
		}
	}

	return domain.DiagnosticItem{
		ID:      "tool_" + name,
		Name:    name,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkModelDir validates the model cache directory is writable.
func (c *Checker) checkModelDir(modelDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model_dir",
		Name: "Model directory",
	}

	if strings.TrimSpace(modelDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Model directory is empty."
		item.Hint = "Set a directory where speech models can be downloaded."
		return item
	}

	if err := c.mkdirAll(modelDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create model directory: %s", modelDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(modelDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Model directory is not writable: %s", modelDir)
		item.Hint = "Choose a writable directory for model downloads."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", modelDir)
	return item
}

// checkSelectedModel reports whether the configured variant is cached.
func (c *Checker) checkSelectedModel(settings domain.Settings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model_file",
		Name: "Speech model",
	}

	variant, ok := domain.ParseModelVariant(settings.Model)
	if !ok {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Unknown model variant: %s", settings.Model)
		item.Hint = "Pick one of the supported model sizes in settings."
		return item
	}

	modelPath := filepath.Join(settings.ModelDir, variant.FileName())
	info, err := c.stat(modelPath)
	if err != nil || info.IsDir() {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Model not downloaded yet: %s", variant)
		item.Hint = "Runs without source captions need the model; download it from the model picker."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Model file found: %s", modelPath)
	return item
}

// checkAPIKey warns when summaries are disabled by a missing key.
func (c *Checker) checkAPIKey(apiKey string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "openai_api_key",
		Name: "OpenAI API key",
	}

	if strings.TrimSpace(apiKey) == "" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "No API key configured; runs will produce transcripts without summaries."
		item.Hint = "Add an OpenAI API key in settings to enable AI summaries."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = "API key configured."
	return item
}
