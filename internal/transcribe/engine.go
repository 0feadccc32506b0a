// Package transcribe runs local speech recognition over a media file,
// yielding ordered text segments incrementally.
package transcribe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"video-summary/internal/domain"
)

// ErrModelMissing is returned when the model for the requested variant
// has not been downloaded. The engine never triggers downloads itself.
var ErrModelMissing = errors.New("speech model is not downloaded")

// EngineError is a recognizer failure with captured process output.
type EngineError struct {
	Message string
	Stderr  string
	Err     error
}

// Error formats recognizer failures for logs and status reporting.
func (e *EngineError) Error() string {
	if e == nil {
		return ""
	}
	if e.Stderr == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.TrimSpace(e.Stderr))
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *EngineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// modelStore exposes the cache lookups the engine depends on.
type modelStore interface {
	IsPresent(domain.ModelVariant) bool
	Path(domain.ModelVariant) string
}

// streamRunner abstracts process execution with line-streamed stdout.
type streamRunner interface {
	Run(ctx context.Context, name string, args []string, onLine func(line string)) error
}

// execStreamRunner executes commands via os/exec and scans stdout.
type execStreamRunner struct{}

// Run starts the command, forwards each stdout line, and waits.
func (r *execStreamRunner) Run(ctx context.Context, name string, args []string, onLine func(line string)) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return &EngineError{Message: "recognizer exited with error", Stderr: stderr.String(), Err: err}
	}
	if scanErr != nil {
		return &EngineError{Message: "read recognizer output", Err: scanErr}
	}
	return nil
}

// segmentLine matches one recognized segment printed by whisper-cli,
// e.g. "[00:00:00.000 --> 00:00:02.500]   hello world".
var segmentLine = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}[.,]\d{3} --> \d{2}:\d{2}:\d{2}[.,]\d{3}\]\s*(.*)$`)

// Engine streams a media file through a cached whisper.cpp model.
type Engine struct {
	models modelStore
	binary string
	runner streamRunner
	stat   func(string) (os.FileInfo, error)
}

// NewEngine constructs the production engine over the given model store.
func NewEngine(models modelStore) *Engine {
	return &Engine{
		models: models,
		binary: "whisper-cli",
		runner: &execStreamRunner{},
		stat:   os.Stat,
	}
}

// NewEngineForTests constructs an engine with injectable dependencies.
func NewEngineForTests(models modelStore, binary string, runner streamRunner) *Engine {
	return &Engine{
		models: models,
		binary: binary,
		runner: runner,
		stat:   os.Stat,
	}
}

// Transcribe runs the recognizer over filePath and returns the full
// transcript: segments trimmed and joined with single spaces, in
// production order. onSegment receives the 1-based running segment
// count before each segment's text is appended; the sink is invoked
// synchronously and must return promptly. On cancellation the engine
// returns the context error and no partial transcript.
func (e *Engine) Transcribe(ctx context.Context, filePath string, variant domain.ModelVariant, languageHint string, onSegment func(count int)) (string, error) {
	if strings.TrimSpace(filePath) == "" {
		return "", fmt.Errorf("input media path is required")
	}
	if _, err := e.stat(filePath); err != nil {
		return "", fmt.Errorf("cannot access input media: %s: %w", filePath, err)
	}
	if !e.models.IsPresent(variant) {
		return "", ErrModelMissing
	}

	args := buildRecognizerArgs(e.models.Path(variant), filePath, languageHint)

	var segments []string
	count := 0
	runErr := e.runner.Run(ctx, e.binary, args, func(line string) {
		match := segmentLine.FindStringSubmatch(line)
		if match == nil {
			return
		}
		text := strings.TrimSpace(match[1])
		if text == "" {
			return
		}
		count++
		if onSegment != nil {
			onSegment(count)
		}
		segments = append(segments, text)
	})

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if runErr != nil {
		return "", runErr
	}

	return strings.Join(segments, " "), nil
}

// buildRecognizerArgs builds whisper-cli args for stdout segment output.
func buildRecognizerArgs(modelPath, filePath, languageHint string) []string {
	args := []string{
		"-m", modelPath,
		"-f", filePath,
	}
	if lang := normalizeLanguage(languageHint); lang != "" {
		args = append(args, "-l", lang)
	}
	return args
}

// normalizeLanguage maps "auto" and empty hints to no forced language.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}
