// Package compile turns collected frame results into the final slideshow
// video: deterministic ordering, frame-rate derivation, and the handoff to
// the compositor.
package compile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"

	"ytframes/internal/model"
)

var (
	// ErrNoFrames means assembly was requested with zero successful results.
	ErrNoFrames = errors.New("compile: no frames to assemble")
	// ErrInvalidHold means the per-frame hold duration is not positive.
	ErrInvalidHold = errors.New("compile: frame hold duration must be positive")
)

// Compositor renders an ordered frame sequence into a video file.
type Compositor interface {
	Compose(ctx context.Context, framePaths []string, fps int, outputPath string) error
}

// Compiler assembles frame results into the output video.
type Compiler struct {
	// Compositor performs the actual rendering.
	Compositor Compositor
	// Hold is how long each frame stays on screen, in seconds.
	Hold float64
}

// FPS converts a per-frame hold duration in seconds to the integer frame
// rate handed to the compositor, never below 1.
func FPS(hold float64) int {
	fps := int(math.Round(1 / hold))
	if fps < 1 {
		return 1
	}
	return fps
}

// Compile sorts the results by upload time (oldest first, undated last,
// channel position as the tie-break) and renders them to outputPath. The
// ordering matches the fetch ordering exactly, so resumed and fresh runs
// produce the same sequence for the same inputs.
func (c *Compiler) Compile(ctx context.Context, results []*model.FrameResult, outputPath string) error {
	if len(results) == 0 {
		return ErrNoFrames
	}
	if c.Hold <= 0 {
		return ErrInvalidHold
	}

	ordered := make([]*model.FrameResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return model.CompareUpload(
			ordered[i].UploadedAt, ordered[i].Video.Position,
			ordered[j].UploadedAt, ordered[j].Video.Position,
		) < 0
	})

	framePaths := make([]string, len(ordered))
	for i, result := range ordered {
		framePaths[i] = result.FramePath
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("compile: create output dir: %w", err)
		}
	}

	fps := FPS(c.Hold)
	log.Printf("ytframes: assembling %d frames at %d fps into %s", len(framePaths), fps, outputPath)
	if err := c.Compositor.Compose(ctx, framePaths, fps, outputPath); err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	return nil
}
