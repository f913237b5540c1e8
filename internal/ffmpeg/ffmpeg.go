// Package ffmpeg shells out to the ffmpeg binary for the two media
// operations the pipeline needs: grabbing a single still frame from a clip
// and composing the collected frames into a slideshow video.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotInstalled is returned when the ffmpeg binary cannot be executed.
var ErrNotInstalled = errors.New("ffmpeg: binary not found in PATH")

const (
	defaultCanvasWidth  = 1920
	defaultCanvasHeight = 1080
)

// Tool wraps an ffmpeg binary. The zero value is not usable; construct with
// NewTool.
type Tool struct {
	// Path is the ffmpeg binary name or path.
	Path string
	// Width and Height define the output canvas for Compose. Frames are
	// scaled to fit and letterboxed, never cropped or stretched.
	Width  int
	Height int
}

// NewTool returns a Tool for the given binary path, using the standard
// 1920x1080 canvas. An empty path falls back to "ffmpeg".
func NewTool(path string) *Tool {
	if path == "" {
		path = "ffmpeg"
	}
	return &Tool{Path: path, Width: defaultCanvasWidth, Height: defaultCanvasHeight}
}

// CheckInstalled verifies the binary is executable.
func (t *Tool) CheckInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, t.Path, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	return nil
}

// CaptureFrame extracts exactly one still image from src at the given
// timestamp in seconds, writing it to dst. The timestamp is relative to the
// start of src.
func (t *Tool) CaptureFrame(ctx context.Context, src string, timestamp float64, dst string) error {
	args := []string{"-loglevel", "error", "-y"}
	if timestamp > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", timestamp))
	}
	args = append(args,
		"-i", src,
		"-frames:v", "1",
		"-q:v", "2",
		dst,
	)

	if err := t.run(ctx, args); err != nil {
		return fmt.Errorf("capture frame from %s: %w", filepath.Base(src), err)
	}
	if _, err := os.Stat(dst); err != nil {
		return fmt.Errorf("capture frame from %s: no image produced", filepath.Base(src))
	}
	return nil
}

// Compose renders framePaths, in the order given, into a slideshow video at
// outputPath. Each frame is shown for 1/fps seconds on a letterboxed canvas.
func (t *Tool) Compose(ctx context.Context, framePaths []string, fps int, outputPath string) error {
	list, err := writeConcatList(framePaths)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	defer os.Remove(list)

	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		t.Width, t.Height, t.Width, t.Height,
	)
	args := []string{
		"-loglevel", "error", "-y",
		"-f", "concat",
		"-safe", "0",
		"-r", fmt.Sprintf("%d", fps),
		"-i", list,
		"-vf", filter,
		"-pix_fmt", "yuv420p",
		outputPath,
	}

	if err := t.run(ctx, args); err != nil {
		return fmt.Errorf("compose %d frames: %w", len(framePaths), err)
	}
	return nil
}

func (t *Tool) run(ctx context.Context, args []string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Path, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%v: %s", err, msg)
		}
		return err
	}
	return nil
}

// writeConcatList produces a concat demuxer input file listing every frame.
// Paths are absolute so the list's own location does not matter.
func writeConcatList(framePaths []string) (string, error) {
	f, err := os.CreateTemp("", "ytframes-concat-*.txt")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, p := range framePaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", err
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}

	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
