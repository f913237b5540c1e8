package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 10 * time.Minute
)

// Client drives yt-dlp as a subprocess for both channel enumeration and
// time-windowed clip retrieval. A single Client is shared by all workers;
// its limiter paces subprocess launches to ease upstream throttling.
type Client struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// Timeout is the maximum time to wait for one invocation.
	Timeout time.Duration

	// CookieBrowser names the browser profile for --cookies-from-browser.
	// Empty disables cookie extraction.
	CookieBrowser string

	// RateLimit is the per-download bandwidth ceiling in bytes per second.
	// Zero means unlimited.
	RateLimit int

	// Limiter paces subprocess launches across all callers. Nil disables
	// pacing.
	Limiter *rate.Limiter
}

// NewClient creates a yt-dlp client with the given pacing interval.
func NewClient(path string, timeout time.Duration, interval time.Duration) *Client {
	c := &Client{
		Path:    path,
		Timeout: timeout,
	}
	if interval > 0 {
		c.Limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return c
}

// CheckInstalled verifies that the yt-dlp binary is runnable.
func (c *Client) CheckInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.path(), "--version")
	if err := cmd.Run(); err != nil {
		return ErrYtdlpNotInstalled
	}
	return nil
}

// ListChannel fetches the channel's full flat-playlist enumeration.
func (c *Client) ListChannel(ctx context.Context, channelURL string, opts ListOptions) ([]Entry, error) {
	args := []string{
		"-J",
		"--flat-playlist",
		"--skip-download",
		"--ignore-errors",
		"--no-warnings",
	}
	args = c.appendCookieArgs(args, opts.NoCookies)
	args = append(args, channelURL)

	stdout, err := c.run(ctx, "list", channelURL, args)
	if err != nil {
		return nil, err
	}

	entries, err := parsePlaylist(stdout)
	if err != nil {
		return nil, fmt.Errorf("parse channel listing: %w", err)
	}
	return entries, nil
}

// ClipOptions configures a time-windowed media retrieval.
type ClipOptions struct {
	// Dir is the private scratch directory for the downloaded media.
	Dir string
	// Start and End bound the retrieval window in seconds from stream start.
	Start, End float64
	// MaxHeight caps the source resolution in pixels.
	MaxHeight int
	// NoCookies disables browser cookie extraction for this request.
	NoCookies bool
}

// Clip is the retrieved media window plus the auxiliary metadata needed to
// finalize an extraction.
type Clip struct {
	// Path is the local media file.
	Path string
	// UploadedAt is the upload time from the retrieval metadata
	// (upload date field first, then release timestamp). Zero when absent.
	UploadedAt time.Time
}

// DownloadClip retrieves only the requested time window of a video into
// opts.Dir, bounding bandwidth and latency. The retrieval window is cut on
// forced keyframes so the capture timestamp stays addressable.
func (c *Client) DownloadClip(ctx context.Context, videoURL string, opts ClipOptions) (*Clip, error) {
	height := opts.MaxHeight
	if height < 144 {
		height = 144
	}
	format := fmt.Sprintf(
		"bestvideo[height<=%d][ext=mp4]+bestaudio[ext=m4a]/best[height<=%d][ext=mp4]/best[ext=mp4]/best",
		height, height)

	args := []string{
		"--no-warnings",
		"--no-playlist",
		"-f", format,
		"--merge-output-format", "mp4",
		"-o", opts.Dir + "/%(id)s.%(ext)s",
		"--download-sections", fmt.Sprintf("*%.2f-%.2f", opts.Start, opts.End),
		"--force-keyframes-at-cuts",
		"--print", "after_move:%(filepath)s|%(upload_date)s|%(release_timestamp)s",
		"--no-simulate",
	}
	if c.RateLimit > 0 {
		args = append(args, "--limit-rate", strconv.Itoa(c.RateLimit))
	}
	args = c.appendCookieArgs(args, opts.NoCookies)
	args = append(args, videoURL)

	stdout, err := c.run(ctx, "clip", videoURL, args)
	if err != nil {
		return nil, err
	}

	clip, err := parseClipOutput(string(stdout))
	if err != nil {
		return nil, &ExecError{Op: "clip", URL: videoURL, Stderr: err.Error(), Err: err}
	}
	return clip, nil
}

func (c *Client) run(ctx context.Context, op, url string, args []string) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = defaultYtdlpTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, c.path(), args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return nil, &ExecError{Op: op, URL: url, Err: ErrNetworkTimeout}
		}
		if cmdCtx.Err() == context.Canceled {
			return nil, &ExecError{Op: op, URL: url, Err: context.Canceled}
		}

		errMsg := strings.TrimSpace(stderr.String())
		lowered := strings.ToLower(errMsg)
		if strings.Contains(lowered, "does not exist") || strings.Contains(lowered, "not found") {
			return nil, &ExecError{Op: op, URL: url, Stderr: errMsg, Err: ErrChannelNotFound}
		}
		if strings.Contains(lowered, "429") || strings.Contains(lowered, "rate-limited") {
			return nil, &ExecError{Op: op, URL: url, Stderr: errMsg, Err: ErrRateLimited}
		}
		return nil, &ExecError{Op: op, URL: url, Stderr: errMsg, Err: err}
	}

	return stdout.Bytes(), nil
}

func (c *Client) appendCookieArgs(args []string, noCookies bool) []string {
	if c.CookieBrowser != "" && !noCookies {
		args = append(args, "--cookies-from-browser", c.CookieBrowser)
	}
	return args
}

func (c *Client) path() string {
	if c.Path != "" {
		return c.Path
	}
	return defaultYtdlpPath
}

// playlistNode mirrors yt-dlp's -J output. Channel extractions may nest:
// the channel node holds tab nodes which hold the video entries.
type playlistNode struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	URL              string          `json:"url"`
	WebpageURL       string          `json:"webpage_url"`
	Duration         float64         `json:"duration"`
	LiveStatus       string          `json:"live_status"`
	UploadDate       string          `json:"upload_date"`
	Timestamp        int64           `json:"timestamp"`
	ReleaseTimestamp int64           `json:"release_timestamp"`
	Entries          []*playlistNode `json:"entries"`
}

// parsePlaylist flattens a possibly nested playlist payload into leaf
// entries, preserving upstream enumeration order.
func parsePlaylist(data []byte) ([]Entry, error) {
	var root playlistNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	var entries []Entry
	var walk func(node *playlistNode)
	walk = func(node *playlistNode) {
		if node == nil {
			return
		}
		if len(node.Entries) > 0 {
			for _, child := range node.Entries {
				walk(child)
			}
			return
		}
		entries = append(entries, Entry{
			ID:         node.ID,
			Title:      node.Title,
			URL:        coalesce(node.WebpageURL, node.URL),
			Duration:   node.Duration,
			LiveStatus: node.LiveStatus,
			UploadedAt: resolveUploadTime(node.UploadDate, node.Timestamp, node.ReleaseTimestamp),
		})
	}
	walk(&root)

	return entries, nil
}

// resolveUploadTime falls through the upstream date fields: the YYYYMMDD
// upload date first, then the unix timestamp, then the release timestamp.
func resolveUploadTime(uploadDate string, timestamp, releaseTimestamp int64) time.Time {
	if uploadDate != "" {
		if t, err := time.Parse("20060102", uploadDate); err == nil {
			return t.UTC()
		}
	}
	if timestamp > 0 {
		return time.Unix(timestamp, 0).UTC()
	}
	if releaseTimestamp > 0 {
		return time.Unix(releaseTimestamp, 0).UTC()
	}
	return time.Time{}
}

// parseClipOutput extracts the printed filepath|upload_date|release line.
// yt-dlp prints "NA" for absent template fields.
func parseClipOutput(out string) (*Clip, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || !strings.Contains(line, "|") {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != 3 || fields[0] == "" || fields[0] == "NA" {
			continue
		}

		var release int64
		if n, err := strconv.ParseInt(fields[2], 10, 64); err == nil {
			release = n
		}
		return &Clip{
			Path:       fields[0],
			UploadedAt: resolveUploadTime(naEmpty(fields[1]), 0, release),
		}, nil
	}
	return nil, fmt.Errorf("no download result line in output")
}

func naEmpty(s string) string {
	if s == "NA" {
		return ""
	}
	return s
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
