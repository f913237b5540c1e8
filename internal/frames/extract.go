// Package frames drives per-video frame extraction: window selection, clip
// retrieval, frame capture, and the bounded worker pool that coordinates it.
package frames

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ytframes/internal/model"
	"ytframes/internal/youtube"
)

const (
	// windowHalfSpan is the retrieval window reach on either side of the
	// target frame, in seconds.
	windowHalfSpan = 1.5
	// windowMinSpan is the minimum retrieval span after clamping.
	windowMinSpan = 0.75
	// endOfStreamMargin keeps the 100% position short of end-of-stream.
	endOfStreamMargin = 0.1
)

// Retriever fetches a time window of a video into a local file.
type Retriever interface {
	DownloadClip(ctx context.Context, videoURL string, opts youtube.ClipOptions) (*youtube.Clip, error)
}

// Capturer produces exactly one still image from a local media file.
type Capturer interface {
	CaptureFrame(ctx context.Context, src string, timestamp float64, dst string) error
}

// ExtractionError is a classified per-video failure. Reason is the
// human-readable text the failure tally is classified from.
type ExtractionError struct {
	VideoID string
	Reason  string
	Err     error
}

func (e *ExtractionError) Error() string {
	return e.Reason
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor runs the single-video extraction state machine. All fields are
// set once before the worker pool starts; Extract is safe for concurrent
// use because every invocation writes only to its own scratch directory and
// its own video-id-keyed frame path.
type Extractor struct {
	// Retriever fetches the media window.
	Retriever Retriever
	// Capturer grabs the still frame.
	Capturer Capturer
	// FrameDir is the shared frame artifact directory.
	FrameDir string
	// WorkDir is the root for per-task scratch directories.
	WorkDir string
	// Percent is the frame position within the video duration, 0-100.
	Percent float64
	// MaxHeight caps the retrieved source resolution.
	MaxHeight int
	// UseCookies enables authenticated retrieval with a one-shot
	// unauthenticated retry when cookie extraction fails.
	UseCookies bool
}

// Extract captures one frame for the video and publishes it at
// <FrameDir>/<id>.png. The frame is written to a private temp name and
// renamed in only once complete, so an interrupted task never leaves a
// partial artifact visible. The retrieved media is deleted regardless of
// outcome.
func (e *Extractor) Extract(ctx context.Context, video model.Video) (*model.FrameResult, error) {
	timestamp := FrameTimestamp(video.Duration, e.Percent)
	start, end := RetrievalWindow(timestamp, video.Duration)

	scratch := filepath.Join(e.WorkDir, uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, e.fail(video, fmt.Sprintf("create scratch dir: %v", err), err)
	}
	defer os.RemoveAll(scratch)

	clip, err := e.retrieve(ctx, video, youtube.ClipOptions{
		Dir:       scratch,
		Start:     start,
		End:       end,
		MaxHeight: e.MaxHeight,
	})
	if err != nil {
		return nil, e.classifyRetrieval(video, err)
	}

	if err := os.MkdirAll(e.FrameDir, 0755); err != nil {
		return nil, e.fail(video, fmt.Sprintf("create frame dir: %v", err), err)
	}

	tmpFrame := filepath.Join(e.FrameDir, "."+uuid.NewString()+".png")
	if err := e.Capturer.CaptureFrame(ctx, clip.Path, timestamp, tmpFrame); err != nil {
		os.Remove(tmpFrame)
		return nil, e.fail(video, fmt.Sprintf("frame capture failed: %v", err), err)
	}

	framePath := filepath.Join(e.FrameDir, video.ID+".png")
	if err := os.Rename(tmpFrame, framePath); err != nil {
		os.Remove(tmpFrame)
		return nil, e.fail(video, fmt.Sprintf("publish frame: %v", err), err)
	}

	uploadedAt := video.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = clip.UploadedAt
	}

	return &model.FrameResult{
		Video:      video,
		FramePath:  framePath,
		UploadedAt: uploadedAt,
	}, nil
}

// retrieve downloads the clip, downgrading to unauthenticated access once
// if browser cookie extraction was the failure. Transient-error retry policy
// lives in the channel fetcher, not here: each task is one of many parallel
// units and a blanket per-task retry would amplify upstream load.
func (e *Extractor) retrieve(ctx context.Context, video model.Video, opts youtube.ClipOptions) (*youtube.Clip, error) {
	opts.NoCookies = !e.UseCookies
	clip, err := e.Retriever.DownloadClip(ctx, video.URL, opts)
	if err != nil && e.UseCookies && youtube.IsCookieError(err) {
		log.Printf("ytframes: warning: cookie extraction failed for %s; retrying without cookies", video.ID)
		opts.NoCookies = true
		clip, err = e.Retriever.DownloadClip(ctx, video.URL, opts)
	}
	return clip, err
}

// classifyRetrieval turns a retrieval failure into a reason string the
// category rules can match against.
func (e *Extractor) classifyRetrieval(video model.Video, err error) *ExtractionError {
	lowered := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowered, "confirm your age"):
		return e.fail(video, "age restricted (requires authentication)", err)
	case strings.Contains(lowered, "rate-limited") || strings.Contains(lowered, "try again later"):
		return e.fail(video, "rate limited by upstream", err)
	default:
		return e.fail(video, fmt.Sprintf("download failed: %s", truncateReason(err.Error())), err)
	}
}

func (e *Extractor) fail(video model.Video, reason string, err error) *ExtractionError {
	return &ExtractionError{VideoID: video.ID, Reason: reason, Err: err}
}

func truncateReason(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// FrameTimestamp computes the capture position in seconds for a percentage
// of the video duration. The 100% boundary maps just short of end-of-stream;
// an unknown or non-positive duration always maps to zero.
func FrameTimestamp(durationSeconds int, percent float64) float64 {
	bounded := percent
	if bounded < 0 {
		bounded = 0
	}
	if bounded > 100 {
		bounded = 100
	}
	if durationSeconds <= 0 {
		return 0
	}
	if bounded == 100 {
		ts := float64(durationSeconds) - endOfStreamMargin
		if ts < 0 {
			return 0
		}
		return ts
	}
	return float64(durationSeconds) * bounded / 100
}

// RetrievalWindow derives the media request window around a target
// timestamp: +-1.5s clamped to [0, duration], widened back to a minimum
// 0.75s span if clamping shrank it below that.
func RetrievalWindow(target float64, durationSeconds int) (start, end float64) {
	start = target - windowHalfSpan
	if start < 0 {
		start = 0
	}
	end = target + windowHalfSpan
	if durationSeconds > 0 && end > float64(durationSeconds) {
		end = float64(durationSeconds)
	}
	if end-start < windowMinSpan {
		end = start + windowMinSpan
	}
	return start, end
}
