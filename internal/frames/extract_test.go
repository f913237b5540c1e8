package frames

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ytframes/internal/model"
	"ytframes/internal/youtube"
)

func TestFrameTimestamp_Properties(t *testing.T) {
	durations := []int{1, 30, 61, 600, 7200}
	for _, d := range durations {
		prev := -1.0
		for p := 0.0; p <= 100.0; p += 5 {
			ts := FrameTimestamp(d, p)
			if ts < 0 || ts > float64(d) {
				t.Errorf("FrameTimestamp(%d, %v) = %v outside [0, %d]", d, p, ts, d)
			}
			if ts < prev {
				t.Errorf("FrameTimestamp(%d, %v) = %v decreased from %v", d, p, ts, prev)
			}
			prev = ts
		}
	}
}

func TestFrameTimestamp_Boundaries(t *testing.T) {
	tests := []struct {
		name     string
		duration int
		percent  float64
		want     float64
	}{
		{"start", 600, 0, 0},
		{"midpoint", 600, 50, 300},
		{"end maps short of stream end", 600, 100, 599.9},
		{"negative percent clamps", 600, -10, 0},
		{"over 100 clamps to end rule", 600, 150, 599.9},
		{"zero duration", 0, 50, 0},
		{"negative duration", -5, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FrameTimestamp(tt.duration, tt.percent); got != tt.want {
				t.Errorf("FrameTimestamp(%d, %v) = %v, want %v", tt.duration, tt.percent, got, tt.want)
			}
		})
	}
}

func TestRetrievalWindow(t *testing.T) {
	tests := []struct {
		name      string
		target    float64
		duration  int
		wantStart float64
		wantEnd   float64
	}{
		{"interior", 100, 600, 98.5, 101.5},
		{"clamped at start", 0.5, 600, 0, 2},
		{"clamped at end widens to min span", 599.9, 600, 598.4, 600},
		{"short video keeps full tail", 0.9, 1, 0, 1},
		{"clamp below min span widens", 6, 5, 4.5, 5.25},
		{"unknown duration leaves end unclamped", 10, 0, 8.5, 11.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := RetrievalWindow(tt.target, tt.duration)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("RetrievalWindow(%v, %d) = (%v, %v), want (%v, %v)",
					tt.target, tt.duration, start, end, tt.wantStart, tt.wantEnd)
			}
			if end-start < windowMinSpan-1e-9 {
				t.Errorf("window span %v below minimum %v", end-start, windowMinSpan)
			}
		})
	}
}

// fakeRetriever writes a stand-in media file and records its calls.
type fakeRetriever struct {
	calls []youtube.ClipOptions
	clip  youtube.Clip
	errs  []error
}

func (f *fakeRetriever) DownloadClip(ctx context.Context, videoURL string, opts youtube.ClipOptions) (*youtube.Clip, error) {
	f.calls = append(f.calls, opts)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	clip := f.clip
	if clip.Path == "" {
		clip.Path = filepath.Join(opts.Dir, "media.mp4")
	}
	if err := os.WriteFile(clip.Path, []byte("media"), 0644); err != nil {
		return nil, err
	}
	return &clip, nil
}

// fakeCapturer writes a stand-in image unless told to fail.
type fakeCapturer struct {
	timestamps []float64
	fail       bool
}

func (f *fakeCapturer) CaptureFrame(ctx context.Context, src string, timestamp float64, dst string) error {
	f.timestamps = append(f.timestamps, timestamp)
	if f.fail {
		return errors.New("capture exploded")
	}
	return os.WriteFile(dst, []byte("png"), 0644)
}

func testVideo() model.Video {
	return model.Video{
		ID:       "vid01",
		Title:    "Test video",
		URL:      "https://www.youtube.com/watch?v=vid01",
		Duration: 600,
		Position: 0,
	}
}

func newTestExtractor(t *testing.T, retriever Retriever, capturer Capturer) *Extractor {
	t.Helper()
	return &Extractor{
		Retriever: retriever,
		Capturer:  capturer,
		FrameDir:  filepath.Join(t.TempDir(), "frames"),
		WorkDir:   t.TempDir(),
		Percent:   50,
		MaxHeight: 720,
	}
}

func TestExtract_Success(t *testing.T) {
	retriever := &fakeRetriever{}
	capturer := &fakeCapturer{}
	e := newTestExtractor(t, retriever, capturer)

	result, err := e.Extract(context.Background(), testVideo())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	wantPath := filepath.Join(e.FrameDir, "vid01.png")
	if result.FramePath != wantPath {
		t.Errorf("FramePath = %q, want %q", result.FramePath, wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("frame artifact missing: %v", err)
	}

	// Capture happens at the absolute timestamp, not window-relative.
	if len(capturer.timestamps) != 1 || capturer.timestamps[0] != 300 {
		t.Errorf("capture timestamps = %v, want [300]", capturer.timestamps)
	}

	// The requested window surrounds the target.
	if len(retriever.calls) != 1 {
		t.Fatalf("retriever called %d times, want 1", len(retriever.calls))
	}
	opts := retriever.calls[0]
	if opts.Start != 298.5 || opts.End != 301.5 {
		t.Errorf("window = (%v, %v), want (298.5, 301.5)", opts.Start, opts.End)
	}
}

func TestExtract_CleansScratchDir(t *testing.T) {
	retriever := &fakeRetriever{}
	e := newTestExtractor(t, retriever, &fakeCapturer{})

	if _, err := e.Extract(context.Background(), testVideo()); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	entries, err := os.ReadDir(e.WorkDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dirs left behind: %v", entries)
	}
}

func TestExtract_CaptureFailureLeavesNoPartialFrame(t *testing.T) {
	e := newTestExtractor(t, &fakeRetriever{}, &fakeCapturer{fail: true})

	_, err := e.Extract(context.Background(), testVideo())
	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("Extract() error = %v, want *ExtractionError", err)
	}
	if !strings.Contains(extErr.Reason, "frame capture failed") {
		t.Errorf("Reason = %q, want capture failure text", extErr.Reason)
	}

	entries, readErr := os.ReadDir(e.FrameDir)
	if readErr != nil && !os.IsNotExist(readErr) {
		t.Fatal(readErr)
	}
	for _, entry := range entries {
		t.Errorf("partial artifact left in frame dir: %s", entry.Name())
	}
}

func TestExtract_CookieFailureRetriesWithoutCookies(t *testing.T) {
	cookieErr := &youtube.ExecError{
		Op: "clip", URL: "u",
		Stderr: "could not copy cookies from browser",
		Err:    errors.New("exit status 1"),
	}
	retriever := &fakeRetriever{errs: []error{cookieErr, nil}}
	e := newTestExtractor(t, retriever, &fakeCapturer{})
	e.UseCookies = true

	if _, err := e.Extract(context.Background(), testVideo()); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(retriever.calls) != 2 {
		t.Fatalf("retriever called %d times, want 2", len(retriever.calls))
	}
	if retriever.calls[0].NoCookies {
		t.Error("first attempt disabled cookies")
	}
	if !retriever.calls[1].NoCookies {
		t.Error("retry did not disable cookies")
	}
}

func TestExtract_RetrievalFailureReasons(t *testing.T) {
	tests := []struct {
		name       string
		stderr     string
		wantReason string
	}{
		{"age gate", "ERROR: Sign in to confirm your age", "age restricted (requires authentication)"},
		{"throttled", "ERROR: rate-limited by server", "rate limited by upstream"},
		{"generic", "ERROR: Video unavailable", "download failed:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execErr := &youtube.ExecError{Op: "clip", URL: "u", Stderr: tt.stderr, Err: errors.New("exit status 1")}
			retriever := &fakeRetriever{errs: []error{execErr}}
			e := newTestExtractor(t, retriever, &fakeCapturer{})

			_, err := e.Extract(context.Background(), testVideo())
			var extErr *ExtractionError
			if !errors.As(err, &extErr) {
				t.Fatalf("Extract() error = %v, want *ExtractionError", err)
			}
			if !strings.Contains(extErr.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want substring %q", extErr.Reason, tt.wantReason)
			}
		})
	}
}

func TestExtract_NetworkFailureClassifiesOther(t *testing.T) {
	execErr := &youtube.ExecError{
		Op: "clip", URL: "u",
		Stderr: "ERROR: Unable to download webpage: <urlopen error timed out>",
		Err:    errors.New("exit status 1"),
	}
	retriever := &fakeRetriever{errs: []error{execErr}}
	e := newTestExtractor(t, retriever, &fakeCapturer{})

	_, err := e.Extract(context.Background(), testVideo())
	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("Extract() error = %v, want *ExtractionError", err)
	}
	// The stderr text ends up in the reason; "webpage" must not trip the
	// age-verification rule.
	if got := Classify(extErr.Reason); got != CategoryOther {
		t.Errorf("Classify(%q) = %q, want %q", extErr.Reason, got, CategoryOther)
	}
}

func TestExtract_ResolvesUploadTimeFromClip(t *testing.T) {
	clipTime := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	retriever := &fakeRetriever{clip: youtube.Clip{UploadedAt: clipTime}}
	e := newTestExtractor(t, retriever, &fakeCapturer{})

	video := testVideo() // no UploadedAt on the record
	result, err := e.Extract(context.Background(), video)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !result.UploadedAt.Equal(clipTime) {
		t.Errorf("UploadedAt = %v, want clip metadata %v", result.UploadedAt, clipTime)
	}
}

func TestExtract_RecordUploadTimeWins(t *testing.T) {
	recordTime := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	clipTime := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	retriever := &fakeRetriever{clip: youtube.Clip{UploadedAt: clipTime}}
	e := newTestExtractor(t, retriever, &fakeCapturer{})

	video := testVideo()
	video.UploadedAt = recordTime
	result, err := e.Extract(context.Background(), video)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !result.UploadedAt.Equal(recordTime) {
		t.Errorf("UploadedAt = %v, want record value %v", result.UploadedAt, recordTime)
	}
}
