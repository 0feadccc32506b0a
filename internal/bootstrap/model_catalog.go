package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"video-summary/internal/domain"
	"video-summary/internal/jobs"
)

// ErrDownloadAlreadyActive is returned when a variant download is
// requested while one for the same variant is in flight.
var ErrDownloadAlreadyActive = errors.New("model download already active")

var modelCatalog = []domain.ModelOption{
	{
		ID:          string(domain.ModelTiny),
		Name:        "Tiny",
		FileName:    domain.ModelTiny.FileName(),
		SizeLabel:   "~75 MB",
		Description: "Fastest, lowest accuracy.",
	},
	{
		ID:          string(domain.ModelBase),
		Name:        "Base",
		FileName:    domain.ModelBase.FileName(),
		SizeLabel:   "~142 MB",
		Description: "Balanced speed and quality.",
	},
	{
		ID:          string(domain.ModelSmall),
		Name:        "Small",
		FileName:    domain.ModelSmall.FileName(),
		SizeLabel:   "~466 MB",
		Description: "Higher quality, slower.",
	},
	{
		ID:          string(domain.ModelMedium),
		Name:        "Medium",
		FileName:    domain.ModelMedium.FileName(),
		SizeLabel:   "~1.5 GB",
		Description: "High quality, slowest of the supported tiers.",
	},
}

// GetModels returns the selectable model variants with cache state.
func (a *App) GetModels() []domain.ModelOption {
	cache := a.currentModelCache()

	models := make([]domain.ModelOption, len(modelCatalog))
	copy(models, modelCatalog)

	for i := range models {
		variant, ok := domain.ParseModelVariant(models[i].ID)
		if !ok {
			continue
		}
		asset := cache.Asset(variant)
		models[i].Downloaded = asset.Downloaded
		if asset.Downloaded {
			models[i].LocalPath = asset.Path
		}
	}
	return models
}

// IsModelReady reports whether the variant's model file is cached.
func (a *App) IsModelReady(modelID string) (bool, error) {
	variant, ok := domain.ParseModelVariant(modelID)
	if !ok {
		return false, fmt.Errorf("unknown model variant: %s", modelID)
	}
	return a.currentModelCache().IsPresent(variant), nil
}

// DownloadModel provisions the variant's model file asynchronously,
// publishing cumulative-byte progress events. Present models complete
// immediately.
func (a *App) DownloadModel(modelID string) error {
	variant, ok := domain.ParseModelVariant(strings.TrimSpace(modelID))
	if !ok {
		return fmt.Errorf("unknown model variant: %s", modelID)
	}

	// Snapshot the cache alongside registering the cancel handle: a
	// settings save may swap the cache mid-download.
	ctx, cancel := context.WithTimeout(context.Background(), modelDownloadTimeout)

	a.mu.Lock()
	if _, active := a.downloadCancel[variant]; active {
		a.mu.Unlock()
		cancel()
		return ErrDownloadAlreadyActive
	}
	a.downloadCancel[variant] = cancel
	cache := a.ModelCache
	a.mu.Unlock()

	a.publishEvent(jobs.Event{
		Type:    jobs.EventTypeStatus,
		ModelID: string(variant),
		Message: fmt.Sprintf("Downloading model: %s...", variant),
	})

	go a.runModelDownload(ctx, cache, variant)
	return nil
}

// CancelModelDownload aborts an in-flight download for the variant.
func (a *App) CancelModelDownload(modelID string) error {
	variant, ok := domain.ParseModelVariant(modelID)
	if !ok {
		return fmt.Errorf("unknown model variant: %s", modelID)
	}

	a.mu.Lock()
	cancel, active := a.downloadCancel[variant]
	a.mu.Unlock()

	if !active {
		return fmt.Errorf("no active download for model: %s", variant)
	}
	cancel()
	return nil
}

// runModelDownload streams the model and maps the outcome to events.
func (a *App) runModelDownload(ctx context.Context, cache modelCache, variant domain.ModelVariant) {
	defer a.clearModelDownload(variant)

	err := cache.EnsureDownloaded(ctx, variant, func(received, total int64) {
		a.publishEvent(jobs.Event{
			Type:          jobs.EventTypeProgress,
			ModelID:       string(variant),
			BytesReceived: received,
			BytesTotal:    total,
		})
	})

	switch {
	case err == nil:
		a.publishEvent(jobs.Event{
			Type:    jobs.EventTypeResult,
			ModelID: string(variant),
			Message: fmt.Sprintf("Model downloaded: %s", variant),
		})
	case errors.Is(err, context.Canceled):
		a.publishEvent(jobs.Event{
			Type:    jobs.EventTypeStatus,
			ModelID: string(variant),
			Message: fmt.Sprintf("Model download cancelled: %s", variant),
		})
	default:
		a.publishEvent(jobs.Event{
			Type:    jobs.EventTypeError,
			ModelID: string(variant),
			Message: fmt.Sprintf("Model download failed: %v", err),
		})
	}
}

// clearModelDownload releases the cancellation handle for a variant.
func (a *App) clearModelDownload(variant domain.ModelVariant) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cancel, ok := a.downloadCancel[variant]; ok {
		cancel()
		delete(a.downloadCancel, variant)
	}
}
