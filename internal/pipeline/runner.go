// Package pipeline sequences caption lookup, speech recognition, and
// summarization for one media file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"video-summary/internal/captions"
	"video-summary/internal/domain"
	"video-summary/internal/summarize"
	"video-summary/internal/transcribe"
)

// ErrModelNotReady is a deliberate early stop: the run needs local
// speech recognition but the selected model is not downloaded. Reported
// as actionable status, distinct from a failure.
var ErrModelNotReady = errors.New("speech model is not downloaded")

// NoAPIKeySummary is set instead of a summary when no API key is
// configured. Mutually exclusive with real summary text.
const NoAPIKeySummary = "(OpenAI API 키가 설정되지 않아 요약을 생성할 수 없습니다. 설정에서 API 키를 입력해주세요.)"

// StageError is a stage-aware pipeline failure.
type StageError struct {
	Stage string
	Err   error
}

// Error formats the failed stage and its cause.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	return e.Err
}

// captionFetcher resolves the best caption track text for a video.
type captionFetcher interface {
	FetchBest(ctx context.Context, videoID string) (string, domain.CaptionTrack, error)
}

// modelStore answers model presence checks.
type modelStore interface {
	IsPresent(domain.ModelVariant) bool
}

// transcriber streams a media file through a cached model.
type transcriber interface {
	Transcribe(ctx context.Context, filePath string, variant domain.ModelVariant, languageHint string, onSegment func(count int)) (string, error)
}

// summarizer produces a bulleted summary from a transcript.
type summarizer interface {
	Summarize(ctx context.Context, transcript, apiKey, languageCode string) (string, error)
}

// Request contains the inputs and execution callbacks for one run.
type Request struct {
	InputPath       string
	VideoID         string
	Variant         domain.ModelVariant
	LanguageHint    string
	APIKey          string
	SummaryLanguage string
	OnStatus        func(status domain.RunStatus, message string)
	OnSegment       func(count int)
}

// Result contains the transcript, summary, and caption provenance of a
// completed run. StatusMessage is the last narrated status.
type Result struct {
	Transcript    string
	Summary       string
	UsedCaptions  bool
	StatusMessage string
}

// Runner executes the caption-transcribe-summarize sequence for one run
// at a time. Instantiate per run to execute runs concurrently.
type Runner struct {
	captions   captionFetcher
	models     modelStore
	engine     transcriber
	summarizer summarizer
	stat       func(string) (os.FileInfo, error)
}

// NewRunner wires the production stages.
func NewRunner(captionSource *captions.Fetcher, models modelStore, engine *transcribe.Engine, client *summarize.Client) *Runner {
	return &Runner{
		captions:   captionSource,
		models:     models,
		engine:     engine,
		summarizer: client,
		stat:       os.Stat,
	}
}

// NewRunnerForTests wires a runner with injectable stages.
func NewRunnerForTests(captionSource captionFetcher, models modelStore, engine transcriber, client summarizer) *Runner {
	return &Runner{
		captions:   captionSource,
		models:     models,
		engine:     engine,
		summarizer: client,
		stat:       os.Stat,
	}
}

// Run sequences the stages: try captions, else transcribe, then
// summarize when a key is configured. Optional caption failures
// downgrade to fallback; cancellation propagates immediately; the
// missing-model case stops the run with ErrModelNotReady.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return Result{}, &StageError{Stage: "input", Err: errors.New("input media path is required")}
	}
	if _, err := r.stat(req.InputPath); err != nil {
		return Result{}, &StageError{Stage: "input", Err: fmt.Errorf("cannot access input media: %s: %w", req.InputPath, err)}
	}

	result := Result{}
	narrate := func(status domain.RunStatus, message string) {
		result.StatusMessage = message
		if req.OnStatus != nil {
			req.OnStatus(status, message)
		}
	}

	// Stage 1: source captions, best-effort.
	if strings.TrimSpace(req.VideoID) != "" {
		narrate(domain.RunStatusFetchingCaptions, "Checking source captions...")

		text, track, err := r.captions.FetchBest(ctx, req.VideoID)
		switch {
		case err == nil:
			result.Transcript = text
			result.UsedCaptions = true
			narrate(domain.RunStatusFetchingCaptions, fmt.Sprintf("Caption text extracted (%s).", trackLabel(track)))
		case errors.Is(err, captions.ErrNoCaptions):
			narrate(domain.RunStatusFetchingCaptions, "No captions available, falling back to speech recognition.")
		case captions.IsTransient(err):
			narrate(domain.RunStatusFetchingCaptions, "Caption lookup failed, falling back to speech recognition.")
		case ctx.Err() != nil:
			return Result{}, ctx.Err()
		default:
			return Result{}, &StageError{Stage: "fetching captions", Err: err}
		}
	}

	// Stage 2: local speech recognition when captions missed.
	if result.Transcript == "" {
		if !r.models.IsPresent(req.Variant) {
			narrate(domain.RunStatusTranscribing, "No captions found. Download the speech model first.")
			return result, ErrModelNotReady
		}

		narrate(domain.RunStatusTranscribing, "Recognizing speech...")
		text, err := r.engine.Transcribe(ctx, req.InputPath, req.Variant, req.LanguageHint, func(count int) {
			narrate(domain.RunStatusTranscribing, fmt.Sprintf("Recognizing speech... (%d segments)", count))
			if req.OnSegment != nil {
				req.OnSegment(count)
			}
		})
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			if errors.Is(err, transcribe.ErrModelMissing) {
				return result, ErrModelNotReady
			}
			return Result{}, &StageError{Stage: "transcribing", Err: err}
		}
		result.Transcript = text
	}

	// Stage 3: summary when credentials are present.
	if strings.TrimSpace(req.APIKey) == "" {
		result.Summary = NoAPIKeySummary
		narrate(domain.RunStatusDone, doneMessage("Transcript ready.", result.UsedCaptions))
		return result, nil
	}

	narrate(domain.RunStatusSummarizing, "Generating AI summary...")
	summary, err := r.summarizer.Summarize(ctx, result.Transcript, req.APIKey, req.SummaryLanguage)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, &StageError{Stage: "summarizing", Err: err}
	}
	result.Summary = summary

	narrate(domain.RunStatusDone, doneMessage("Summary complete!", result.UsedCaptions))
	return result, nil
}

// doneMessage annotates the terminal status with transcript provenance.
func doneMessage(base string, usedCaptions bool) string {
	if usedCaptions {
		return base + " (source captions)"
	}
	return base + " (speech recognition)"
}

// trackLabel renders a caption track for status messages.
func trackLabel(track domain.CaptionTrack) string {
	if track.LanguageName != "" {
		return track.LanguageName
	}
	return track.LanguageCode
}
