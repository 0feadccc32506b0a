package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"video-summary/internal/domain"
)

// fakeModelStore reports injected presence per variant.
type fakeModelStore struct {
	present map[domain.ModelVariant]bool
}

// IsPresent reports injected presence.
func (s *fakeModelStore) IsPresent(v domain.ModelVariant) bool {
	return s.present[v]
}

// Path returns a deterministic fake location.
func (s *fakeModelStore) Path(v domain.ModelVariant) string {
	return filepath.Join("/models", v.FileName())
}

// fakeStreamRunner simulates recognizer stdout line output.
type fakeStreamRunner struct {
	run func(ctx context.Context, name string, args []string, onLine func(string)) error
}

// Run delegates to injected behavior.
func (r *fakeStreamRunner) Run(ctx context.Context, name string, args []string, onLine func(string)) error {
	if r.run == nil {
		return nil
	}
	return r.run(ctx, name, args, onLine)
}

// mustWriteFile writes a file or fails the test.
func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// TestTranscribeJoinsSegmentsInOrder checks segment sink ordering and
// the space-joined result.
func TestTranscribeJoinsSegmentsInOrder(t *testing.T) {
	inputPath := filepath.Join(t.TempDir(), "clip.mp4")
	mustWriteFile(t, inputPath, "media")

	runner := &fakeStreamRunner{
		run: func(ctx context.Context, name string, args []string, onLine func(string)) error {
			onLine("whisper_init_from_file: loading model")
			onLine("[00:00:00.000 --> 00:00:01.000]   a")
			onLine("[00:00:01.000 --> 00:00:02.000]  b ")
			onLine("")
			onLine("[00:00:02.000 --> 00:00:03.000] c")
			return nil
		},
	}

	store := &fakeModelStore{present: map[domain.ModelVariant]bool{domain.ModelBase: true}}
	engine := NewEngineForTests(store, "whisper-custom", runner)

	var counts []int
	text, err := engine.Transcribe(context.Background(), inputPath, domain.ModelBase, "auto", func(count int) {
		counts = append(counts, count)
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if text != "a b c" {
		t.Fatalf("text = %q, want %q", text, "a b c")
	}
	if len(counts) != 3 || counts[0] != 1 || counts[1] != 2 || counts[2] != 3 {
		t.Fatalf("segment counts = %v, want [1 2 3]", counts)
	}
}

// TestTranscribeModelMissing checks the precondition error.
func TestTranscribeModelMissing(t *testing.T) {
	inputPath := filepath.Join(t.TempDir(), "clip.mp4")
	mustWriteFile(t, inputPath, "media")

	store := &fakeModelStore{present: map[domain.ModelVariant]bool{}}
	engine := NewEngineForTests(store, "whisper-custom", &fakeStreamRunner{
		run: func(ctx context.Context, name string, args []string, onLine func(string)) error {
			t.Fatal("runner must not be invoked when the model is missing")
			return nil
		},
	})

	_, err := engine.Transcribe(context.Background(), inputPath, domain.ModelSmall, "auto", nil)
	if !errors.Is(err, ErrModelMissing) {
		t.Fatalf("error = %v, want ErrModelMissing", err)
	}
}

// TestTranscribeLanguageArgs checks forced-language flag handling.
func TestTranscribeLanguageArgs(t *testing.T) {
	inputPath := filepath.Join(t.TempDir(), "clip.mp4")
	mustWriteFile(t, inputPath, "media")

	store := &fakeModelStore{present: map[domain.ModelVariant]bool{domain.ModelBase: true}}

	for _, tc := range []struct {
		hint     string
		wantLang string
	}{
		{hint: "auto", wantLang: ""},
		{hint: "", wantLang: ""},
		{hint: "ko", wantLang: "ko"},
	} {
		var gotArgs []string
		runner := &fakeStreamRunner{
			run: func(ctx context.Context, name string, args []string, onLine func(string)) error {
				gotArgs = append([]string{}, args...)
				return nil
			},
		}
		engine := NewEngineForTests(store, "whisper-custom", runner)

		if _, err := engine.Transcribe(context.Background(), inputPath, domain.ModelBase, tc.hint, nil); err != nil {
			t.Fatalf("hint %q: Transcribe() error = %v", tc.hint, err)
		}

		lang := argValue(gotArgs, "-l")
		if lang != tc.wantLang {
			t.Fatalf("hint %q: -l = %q, want %q", tc.hint, lang, tc.wantLang)
		}
		if argValue(gotArgs, "-f") != inputPath {
			t.Fatalf("hint %q: -f = %q, want input path", tc.hint, argValue(gotArgs, "-f"))
		}
	}
}

// TestTranscribeCancelledReturnsNoPartialTranscript checks the
// all-or-nothing contract.
func TestTranscribeCancelledReturnsNoPartialTranscript(t *testing.T) {
	inputPath := filepath.Join(t.TempDir(), "clip.mp4")
	mustWriteFile(t, inputPath, "media")

	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeStreamRunner{
		run: func(ctx context.Context, name string, args []string, onLine func(string)) error {
			onLine("[00:00:00.000 --> 00:00:01.000] partial")
			cancel()
			return ctx.Err()
		},
	}

	store := &fakeModelStore{present: map[domain.ModelVariant]bool{domain.ModelBase: true}}
	engine := NewEngineForTests(store, "whisper-custom", runner)

	text, err := engine.Transcribe(ctx, inputPath, domain.ModelBase, "auto", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if text != "" {
		t.Fatalf("text = %q, want empty on cancellation", text)
	}
}

// TestTranscribeRunnerFailure checks recognizer error propagation.
func TestTranscribeRunnerFailure(t *testing.T) {
	inputPath := filepath.Join(t.TempDir(), "clip.mp4")
	mustWriteFile(t, inputPath, "media")

	runner := &fakeStreamRunner{
		run: func(ctx context.Context, name string, args []string, onLine func(string)) error {
			return &EngineError{Message: "recognizer exited with error", Stderr: "bad model"}
		},
	}

	store := &fakeModelStore{present: map[domain.ModelVariant]bool{domain.ModelBase: true}}
	engine := NewEngineForTests(store, "whisper-custom", runner)

	_, err := engine.Transcribe(context.Background(), inputPath, domain.ModelBase, "auto", nil)
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("error = %v, want *EngineError", err)
	}
}

// TestTranscribeMissingInput checks the input precondition.
func TestTranscribeMissingInput(t *testing.T) {
	store := &fakeModelStore{present: map[domain.ModelVariant]bool{domain.ModelBase: true}}
	engine := NewEngineForTests(store, "whisper-custom", &fakeStreamRunner{})

	if _, err := engine.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), domain.ModelBase, "auto", nil); err == nil {
		t.Fatal("expected error for missing input file")
	}
}

// argValue returns the argument following the given flag.
func argValue(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
