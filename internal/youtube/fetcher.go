package youtube

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"ytframes/internal/model"
	"ytframes/internal/retry"
	"ytframes/internal/storage"
)

const shortsURLSegment = "/shorts/"

// FetchError is returned when neither a fresh enumeration nor a usable
// cached snapshot exists for a channel.
type FetchError struct {
	Channel string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch channel %s: %v", e.Channel, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher acquires the authoritative ordered video list for a channel:
// cache-first, then upstream enumeration with linear-backoff retries,
// falling back to any cached snapshot when attempts are exhausted.
type Fetcher struct {
	// Cache is the snapshot store. Required.
	Cache *storage.Cache
	// Lister performs the upstream enumeration. Required.
	Lister Lister
	// API is an optional alternate enumeration source tried before Lister.
	API Lister
	// Retry bounds the enumeration attempts.
	Retry retry.Config
	// MinDuration drops uploads shorter than this many seconds when their
	// duration is known. Short-form content is excluded by design.
	MinDuration int
}

// FetchOptions controls cache interaction for one fetch.
type FetchOptions struct {
	// PreferCache short-circuits all network activity on a cache hit.
	PreferCache bool
	// ForceRefresh enumerates upstream even when a snapshot exists. The
	// snapshot still serves as the fallback of last resort.
	ForceRefresh bool
}

// Fetch returns the channel's eligible uploads sorted by upload time
// ascending (unknown times last) with enumeration position as tie-break.
func (f *Fetcher) Fetch(ctx context.Context, channelURL string, opts FetchOptions) ([]model.Video, error) {
	cached, hasCache := f.Cache.Load(channelURL)
	if opts.PreferCache && !opts.ForceRefresh && hasCache {
		return cached, nil
	}

	entries, err := f.enumerate(ctx, channelURL)
	if err != nil {
		if hasCache {
			log.Printf("ytframes: channel fetch failed (%v); using cached snapshot", err)
			return cached, nil
		}
		return nil, &FetchError{Channel: channelURL, Err: err}
	}

	videos := f.eligible(entries)
	sort.SliceStable(videos, func(i, j int) bool {
		return model.CompareUpload(videos[i].UploadedAt, videos[i].Position,
			videos[j].UploadedAt, videos[j].Position) < 0
	})

	if len(videos) == 0 {
		if hasCache {
			return cached, nil
		}
		return nil, &FetchError{Channel: channelURL, Err: errors.New("no eligible videos found on the channel")}
	}

	// Advisory write: persistence failure never fails the fetch.
	if err := f.Cache.Store(channelURL, videos); err != nil {
		log.Printf("ytframes: warning: failed to persist channel snapshot: %v", err)
	}

	return videos, nil
}

// enumerate runs the upstream listing with retries. A cookie extraction
// failure downgrades to unauthenticated access once, within the same
// attempt, and stays downgraded for the rest of the fetch.
func (f *Fetcher) enumerate(ctx context.Context, channelURL string) ([]Entry, error) {
	if f.API != nil {
		entries, err := f.API.ListChannel(ctx, channelURL, ListOptions{})
		if err == nil {
			return entries, nil
		}
		log.Printf("ytframes: api enumeration failed (%v); falling back to yt-dlp", err)
	}

	degraded := false
	var entries []Entry
	err := retry.Do(ctx, f.Retry, fetchErrorClassifier, func(ctx context.Context) error {
		var err error
		entries, err = f.Lister.ListChannel(ctx, channelURL, ListOptions{NoCookies: degraded})
		if err != nil && !degraded && IsCookieError(err) {
			log.Printf("ytframes: warning: browser cookie extraction failed (%v); retrying without cookies", err)
			degraded = true
			entries, err = f.Lister.ListChannel(ctx, channelURL, ListOptions{NoCookies: true})
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// eligible filters the raw enumeration and assigns post-filter positions.
func (f *Fetcher) eligible(entries []Entry) []model.Video {
	videos := make([]model.Video, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" || e.URL == "" {
			continue
		}
		if e.LiveStatus == "is_live" || e.LiveStatus == "is_upcoming" {
			continue
		}
		if strings.Contains(strings.ToLower(e.URL), shortsURLSegment) {
			continue
		}
		duration := int(e.Duration)
		if duration > 0 && duration < f.MinDuration {
			continue
		}

		title := e.Title
		if title == "" {
			title = "Untitled"
		}
		videos = append(videos, model.Video{
			ID:         e.ID,
			Title:      title,
			URL:        e.URL,
			UploadedAt: e.UploadedAt,
			Duration:   duration,
			Position:   len(videos),
		})
	}
	return videos
}

// fetchErrorClassifier marks channel-not-found and context errors permanent;
// everything else gets the linear back-off treatment.
func fetchErrorClassifier(err error) bool {
	if errors.Is(err, ErrChannelNotFound) {
		return false
	}
	return retry.IsRetryable(err)
}
