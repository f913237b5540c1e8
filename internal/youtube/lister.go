// Package youtube provides channel enumeration and time-windowed media
// retrieval, backed by yt-dlp with an optional Data API enumeration path.
package youtube

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Sentinel errors for upstream operations.
var (
	ErrChannelNotFound   = errors.New("youtube: channel not found")
	ErrRateLimited       = errors.New("youtube: rate limited")
	ErrNetworkTimeout    = errors.New("youtube: network timeout")
	ErrYtdlpNotInstalled = errors.New("youtube: yt-dlp not installed")
)

// Lister enumerates a channel's uploads. Implementations exist for yt-dlp
// (full flat-playlist extraction) and the YouTube Data API.
type Lister interface {
	// ListChannel fetches the channel's full video enumeration in upstream
	// order. Entries are raw: eligibility filtering belongs to the Fetcher.
	ListChannel(ctx context.Context, channelURL string, opts ListOptions) ([]Entry, error)
}

// ListOptions configures a single enumeration request.
type ListOptions struct {
	// NoCookies disables browser cookie extraction for this request.
	// Set by the Fetcher after a cookie failure forced a downgrade.
	NoCookies bool
}

// Entry is one raw upstream enumeration item before eligibility filtering.
type Entry struct {
	// ID is the upstream video identifier. May be empty for defective entries.
	ID string
	// Title is the video title.
	Title string
	// URL is the watch URL. May be empty for defective entries.
	URL string
	// Duration is the reported length in seconds. Zero when unknown.
	Duration float64
	// LiveStatus is the upstream broadcast state ("is_live", "is_upcoming",
	// "was_live", or empty for plain uploads).
	LiveStatus string
	// UploadedAt is the upload time resolved from the upload date, timestamp,
	// or release timestamp fields, in that order. Zero when all are absent.
	UploadedAt time.Time
}

// ExecError wraps a failed upstream subprocess invocation, keeping the
// stderr text for failure classification.
type ExecError struct {
	Op     string // "list" or "clip"
	URL    string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return "youtube: " + e.Op + " " + e.URL + ": " + e.Stderr
	}
	return "youtube: " + e.Op + " " + e.URL + ": " + e.Err.Error()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsCookieError reports whether err looks like a browser cookie extraction
// failure, the one class of error worth a credential-free retry.
func IsCookieError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "cookies") || strings.Contains(msg, "browser")
}
