package captions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"video-summary/internal/domain"
)

// ErrNoCaptions is returned when the source offers no caption track for
// the video. Expected absence, not a transport failure.
var ErrNoCaptions = errors.New("no caption track available")

// TransientError classifies a transport failure during an optional
// caption lookup. Callers treat it like ErrNoCaptions and fall back to
// speech recognition.
type TransientError struct {
	Op  string
	Err error
}

// Error formats the failed operation and its cause.
func (e *TransientError) Error() string {
	return fmt.Sprintf("caption %s failed: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a classified transport failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Source is the platform capability consumed by the adapter: a caption
// manifest lookup and a track fetch keyed by video identifier.
type Source interface {
	Manifest(ctx context.Context, videoID string) ([]domain.CaptionTrack, error)
	Fetch(ctx context.Context, videoID string, track domain.CaptionTrack) ([]string, error)
}

// Fetcher selects and downloads the best-matching caption track.
type Fetcher struct {
	source Source
}

// NewFetcher creates a caption fetcher over the given source.
func NewFetcher(source Source) *Fetcher {
	return &Fetcher{source: source}
}

// FetchBest downloads the text of the highest-ranked caption track.
// Tracks are ranked by a two-key descending sort: language code prefix
// "ko" first, then prefix "en". Returns ErrNoCaptions when the manifest
// is empty and a TransientError on any transport failure; cancellation
// is propagated as the context error.
func (f *Fetcher) FetchBest(ctx context.Context, videoID string) (string, domain.CaptionTrack, error) {
	tracks, err := f.source.Manifest(ctx, videoID)
	if err != nil {
		return "", domain.CaptionTrack{}, classify(ctx, "manifest", err)
	}

	track, ok := selectTrack(tracks)
	if !ok {
		return "", domain.CaptionTrack{}, ErrNoCaptions
	}

	lines, err := f.source.Fetch(ctx, videoID, track)
	if err != nil {
		return "", domain.CaptionTrack{}, classify(ctx, "fetch", err)
	}

	text := joinLines(lines)
	if text == "" {
		return "", domain.CaptionTrack{}, ErrNoCaptions
	}
	return text, track, nil
}

// classify maps a source error to cancellation or a transient failure.
func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}

// selectTrack ranks tracks ko-first, then en, preserving source order
// within each rank.
func selectTrack(tracks []domain.CaptionTrack) (domain.CaptionTrack, bool) {
	if len(tracks) == 0 {
		return domain.CaptionTrack{}, false
	}

	ranked := make([]domain.CaptionTrack, len(tracks))
	copy(ranked, tracks)
	sort.SliceStable(ranked, func(i, j int) bool {
		return rank(ranked[i]) > rank(ranked[j])
	})
	return ranked[0], true
}

// rank scores a track by language preference.
func rank(track domain.CaptionTrack) int {
	code := strings.ToLower(track.LanguageCode)
	switch {
	case strings.HasPrefix(code, "ko"):
		return 2
	case strings.HasPrefix(code, "en"):
		return 1
	default:
		return 0
	}
}

// joinLines concatenates trimmed caption lines with single spaces.
func joinLines(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	return strings.Join(parts, " ")
}
