package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"video-summary/internal/captions"
	"video-summary/internal/config"
	"video-summary/internal/diagnostics"
	"video-summary/internal/domain"
	"video-summary/internal/jobs"
	"video-summary/internal/modelcache"
	"video-summary/internal/pipeline"
	"video-summary/internal/summarize"
	"video-summary/internal/transcribe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

const modelDownloadTimeout = 45 * time.Minute

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.mp3;*.wav;*.m4a;*.flac;*.aac;*.ogg;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, runs, pipeline stages, and UI runtime
// callbacks. It owns the single shared HTTP client injected into every
// network-facing stage.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Runs        *jobs.Manager
	Pipeline    pipelineRunner
	ModelCache  modelCache
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	httpClient  *http.Client

	mu             sync.Mutex
	activeRunID    string
	cancel         context.CancelFunc
	downloadCancel map[domain.ModelVariant]context.CancelFunc
	events         *jobs.EventBus
	runtimeCtx     context.Context
}

// pipelineRunner isolates the summary pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// modelCache isolates the speech model cache behind an interface.
type modelCache interface {
	IsPresent(domain.ModelVariant) bool
	Path(domain.ModelVariant) string
	Asset(domain.ModelVariant) domain.ModelAsset
	EnsureDownloaded(ctx context.Context, variant domain.ModelVariant, onProgress modelcache.ProgressFunc) error
}

// New builds the application with persisted settings and startup
// diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures
// embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".video-summary", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	httpClient := &http.Client{}
	cache := modelcache.New(settings.ModelDir, httpClient)
	runner := pipeline.NewRunner(
		captions.NewFetcher(captions.NewYouTubeSource(httpClient)),
		cache,
		transcribe.NewEngine(cache),
		summarize.NewClient(httpClient),
	)

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	return &App{
		Settings:       settings,
		Store:          store,
		Runs:           jobs.NewManager(),
		Pipeline:       runner,
		ModelCache:     cache,
		Diagnostics:    report,
		assets:         assets,
		checker:        checker,
		httpClient:     httpClient,
		downloadCancel: make(map[domain.ModelVariant]context.CancelFunc),
		events:         jobs.NewEventBus(1000),
	}, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Video Summary",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores the Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns startup checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	a.mu.Lock()
	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	report := a.Diagnostics
	a.mu.Unlock()
	return report, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes
// diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	if a.httpClient != nil && normalized.ModelDir != a.Settings.ModelDir {
		a.rebuildStagesLocked(normalized.ModelDir)
	}
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// PickInputFile opens a native file dialog for media selection.
func (a *App) PickInputFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media file",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// StartSummary registers a run and executes it asynchronously. A second
// start while one is active is rejected with jobs.ErrRunAlreadyActive.
func (a *App) StartSummary(inputPath, videoID string) (domain.Run, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Run{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	variant, ok := domain.ParseModelVariant(settings.Model)
	if !ok {
		return domain.Run{}, fmt.Errorf("unknown model variant: %s", settings.Model)
	}

	run := domain.Run{
		ID:        uuid.NewString(),
		InputPath: strings.TrimSpace(inputPath),
		VideoID:   strings.TrimSpace(videoID),
		Model:     string(variant),
	}
	if run.InputPath == "" {
		return domain.Run{}, fmt.Errorf("input media path is required")
	}

	if err := a.Runs.Start(run); err != nil {
		return domain.Run{}, err
	}

	// Snapshot the runner under the lock: SaveSettings may swap the
	// pipeline while this run is in flight, and the run must keep the
	// stages it started with.
	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.activeRunID = run.ID
	a.cancel = cancel
	a.Settings = settings
	runner := a.Pipeline
	a.mu.Unlock()

	a.publishStatus(run.ID, a.Runs.Current().Status, "Run started")

	go a.runSummaryJob(ctx, runner, run, settings, variant)
	return a.Runs.Current(), nil
}

// CancelRun signals cancellation to the active run, if any. The run
// goroutine owns every terminal transition and its events, so a cancel
// landing after the pipeline already finished is a no-op.
func (a *App) CancelRun() error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNoActiveRun
	}

	cancel()
	return nil
}

// CurrentRun returns current run metadata and status.
func (a *App) CurrentRun() domain.Run {
	return a.Runs.Current()
}

// RunEvents returns all events with sequence greater than sinceSeq.
func (a *App) RunEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// runSummaryJob executes the pipeline and maps outcomes to run events.
func (a *App) runSummaryJob(ctx context.Context, runner pipelineRunner, run domain.Run, settings domain.Settings, variant domain.ModelVariant) {
	req := pipeline.Request{
		InputPath:       run.InputPath,
		VideoID:         run.VideoID,
		Variant:         variant,
		LanguageHint:    settings.Language,
		APIKey:          settings.OpenAIAPIKey,
		SummaryLanguage: settings.SummaryLanguage,
		OnStatus: func(status domain.RunStatus, message string) {
			if err := a.Runs.Transition(status); err != nil {
				return
			}
			a.Runs.SetMessage(message)
			a.publishStatus(run.ID, status, message)
		},
		OnSegment: func(count int) {
			a.publishEvent(jobs.Event{
				RunID:        run.ID,
				Type:         jobs.EventTypeProgress,
				Status:       domain.RunStatusTranscribing,
				SegmentCount: count,
			})
		},
	}

	result, err := runner.Run(ctx, req)
	switch {
	case err == nil:
		a.Runs.SetOutcome(result.Transcript, result.Summary, result.UsedCaptions)
		_ = a.Runs.Transition(domain.RunStatusDone)
		a.publishEvent(jobs.Event{
			RunID:        run.ID,
			Type:         jobs.EventTypeResult,
			Status:       domain.RunStatusDone,
			Message:      result.StatusMessage,
			Transcript:   result.Transcript,
			Summary:      result.Summary,
			UsedCaptions: result.UsedCaptions,
		})

	case errors.Is(err, context.Canceled):
		_ = a.Runs.Transition(domain.RunStatusCancelled)
		a.publishStatus(run.ID, domain.RunStatusCancelled, "Run cancelled")

	case errors.Is(err, pipeline.ErrModelNotReady):
		// Deliberate early stop, not a failure: release the run so a
		// new one can start once the model is downloaded.
		a.Runs.Reset()
		a.publishStatus(run.ID, domain.RunStatusIdle, result.StatusMessage)

	default:
		_ = a.Runs.Transition(domain.RunStatusFailed)
		a.Runs.SetMessage(err.Error())
		a.publishStatus(run.ID, domain.RunStatusFailed, "Run failed")
		a.publishEvent(jobs.Event{
			RunID:   run.ID,
			Type:    jobs.EventTypeError,
			Status:  domain.RunStatusFailed,
			Message: err.Error(),
		})
	}

	a.clearActiveRun(run.ID)
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(runID string, status domain.RunStatus, message string) {
	a.publishEvent(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishEvent stores event history and emits runtime push
// notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "run:event", published)
	}
}

// clearActiveRun clears cancellation handles for completed run IDs.
func (a *App) clearActiveRun(runID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeRunID == runID {
		a.activeRunID = ""
		a.cancel = nil
	}
}

// currentModelCache returns the cache under the rebuild lock. Callers
// hold the returned value for the whole operation so an in-flight
// download or catalog read never sees a half-swapped cache.
func (a *App) currentModelCache() modelCache {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ModelCache
}

// rebuildStagesLocked re-roots the model cache and pipeline after the
// model directory changed. Caller holds a.mu. Runs and downloads in
// flight keep the snapshots they started with.
func (a *App) rebuildStagesLocked(modelDir string) {
	cache := modelcache.New(modelDir, a.httpClient)
	a.ModelCache = cache
	a.Pipeline = pipeline.NewRunner(
		captions.NewFetcher(captions.NewYouTubeSource(a.httpClient)),
		cache,
		transcribe.NewEngine(cache),
		summarize.NewClient(a.httpClient),
	)
}

// runtimeContext returns the Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and fills defaults for blanks.
func normalizeSettings(settings domain.Settings) domain.Settings {
	defaults := config.DefaultSettings()

	settings.ModelDir = strings.TrimSpace(settings.ModelDir)
	settings.Model = strings.TrimSpace(strings.ToLower(settings.Model))
	settings.Language = strings.TrimSpace(settings.Language)
	settings.SummaryLanguage = strings.TrimSpace(settings.SummaryLanguage)
	settings.OpenAIAPIKey = strings.TrimSpace(settings.OpenAIAPIKey)

	if settings.ModelDir == "" {
		settings.ModelDir = defaults.ModelDir
	}
	if settings.Model == "" {
		settings.Model = defaults.Model
	}
	if settings.Language == "" {
		settings.Language = defaults.Language
	}
	if settings.SummaryLanguage == "" {
		settings.SummaryLanguage = defaults.SummaryLanguage
	}
	return settings
}
