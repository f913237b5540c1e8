// Package model defines the core records passed between pipeline stages.
package model

import "time"

// Video is normalized metadata for one eligible channel upload.
// ID and URL are always non-empty; UploadedAt and Duration may be absent
// (zero) when the upstream enumeration omits them.
type Video struct {
	// ID is the stable upstream video identifier.
	ID string `json:"id"`
	// Title is the video title.
	Title string `json:"title"`
	// URL is the resolvable watch URL.
	URL string `json:"url"`
	// UploadedAt is the upload time. Zero when unknown.
	UploadedAt time.Time `json:"uploaded_at,omitzero"`
	// Duration is the video length in seconds. Zero when unknown.
	Duration int `json:"duration,omitempty"`
	// Position is the zero-based post-filter enumeration index, used as the
	// tie-break key wherever videos are ordered.
	Position int `json:"position"`
}

// FrameResult is the outcome of a successful frame extraction.
type FrameResult struct {
	// Video is the source record.
	Video Video
	// FramePath is the location of the captured still image.
	FramePath string
	// UploadedAt is the best-available upload time resolved during
	// extraction. Zero when no source reported one.
	UploadedAt time.Time
}

// CompareUpload orders two items by upload time ascending with absent (zero)
// times sorted last, breaking ties by enumeration position ascending. Both
// the channel fetcher and the assembly stage sort with this comparator so
// resumed and fresh runs sequence frames identically.
func CompareUpload(aTime time.Time, aPos int, bTime time.Time, bPos int) int {
	switch {
	case aTime.IsZero() && !bTime.IsZero():
		return 1
	case !aTime.IsZero() && bTime.IsZero():
		return -1
	case aTime.Before(bTime):
		return -1
	case bTime.Before(aTime):
		return 1
	}
	switch {
	case aPos < bPos:
		return -1
	case aPos > bPos:
		return 1
	}
	return 0
}
