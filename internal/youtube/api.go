package youtube

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"
)

var (
	channelIDRegex = regexp.MustCompile(`UC[\w-]{22}`)
	handleRegex    = regexp.MustCompile(`@[\w.-]+`)
	isoDurationRe  = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)
)

// APILister enumerates a channel through the YouTube Data API v3. It is the
// preferred source when an API key is configured: quota-bounded but far less
// throttle-prone than scraping. Clip retrieval always stays on yt-dlp; the
// API only serves metadata.
type APILister struct {
	service  *youtubeapi.Service
	pageSize int64
}

// NewAPILister creates a Data API backed lister.
func NewAPILister(ctx context.Context, apiKey string) (*APILister, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	service, err := youtubeapi.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &APILister{service: service, pageSize: 50}, nil
}

// ListChannel fetches the channel's uploads playlist page by page, then
// backfills durations and broadcast state in batches of 50.
func (a *APILister) ListChannel(ctx context.Context, channelURL string, _ ListOptions) ([]Entry, error) {
	playlistID, err := a.uploadsPlaylistID(ctx, channelURL)
	if err != nil {
		return nil, err
	}

	var (
		entries   []Entry
		ids       []string
		byID      = map[string]int{}
		pageToken string
	)
	for {
		call := a.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(a.pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list playlist items: %w", err)
		}

		for _, item := range resp.Items {
			videoID := item.ContentDetails.VideoId
			if videoID == "" {
				continue
			}
			var uploaded time.Time
			if item.ContentDetails.VideoPublishedAt != "" {
				if t, err := time.Parse(time.RFC3339, item.ContentDetails.VideoPublishedAt); err == nil {
					uploaded = t.UTC()
				}
			}
			byID[videoID] = len(entries)
			ids = append(ids, videoID)
			entries = append(entries, Entry{
				ID:         videoID,
				Title:      item.Snippet.Title,
				URL:        "https://www.youtube.com/watch?v=" + videoID,
				UploadedAt: uploaded,
			})
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	// The uploads playlist enumerates newest first; the pipeline expects
	// upstream (oldest-first) enumeration order for position assignment.
	reverse(entries)
	for i := range entries {
		byID[entries[i].ID] = i
	}

	if err := a.fillDetails(ctx, ids, byID, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// uploadsPlaylistID resolves the channel's uploads playlist from a channel
// ID or an @handle embedded in the URL.
func (a *APILister) uploadsPlaylistID(ctx context.Context, channelURL string) (string, error) {
	call := a.service.Channels.List([]string{"contentDetails"}).Context(ctx)

	if id := channelIDRegex.FindString(channelURL); id != "" {
		call = call.Id(id)
	} else if handle := handleRegex.FindString(channelURL); handle != "" {
		call = call.ForHandle(handle)
	} else {
		return "", fmt.Errorf("cannot resolve channel id from %q", channelURL)
	}

	resp, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("resolve channel: %w", err)
	}
	if len(resp.Items) == 0 {
		return "", ErrChannelNotFound
	}
	return resp.Items[0].ContentDetails.RelatedPlaylists.Uploads, nil
}

// fillDetails backfills duration and live broadcast state via videos.list.
func (a *APILister) fillDetails(ctx context.Context, ids []string, byID map[string]int, entries []Entry) error {
	for start := 0; start < len(ids); start += int(a.pageSize) {
		end := start + int(a.pageSize)
		if end > len(ids) {
			end = len(ids)
		}

		resp, err := a.service.Videos.List([]string{"contentDetails", "snippet"}).
			Id(ids[start:end]...).
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("list video details: %w", err)
		}

		for _, item := range resp.Items {
			idx, ok := byID[item.Id]
			if !ok {
				continue
			}
			entries[idx].Duration = float64(parseISODuration(item.ContentDetails.Duration))
			switch item.Snippet.LiveBroadcastContent {
			case "live":
				entries[idx].LiveStatus = "is_live"
			case "upcoming":
				entries[idx].LiveStatus = "is_upcoming"
			}
		}
	}
	return nil
}

// parseISODuration converts an ISO 8601 duration like "PT1H2M3S" to seconds.
// Unparseable values read as zero (unknown).
func parseISODuration(s string) int {
	m := isoDurationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	seconds := 0
	if m[1] != "" {
		if h, err := strconv.Atoi(m[1]); err == nil {
			seconds += h * 3600
		}
	}
	if m[2] != "" {
		if min, err := strconv.Atoi(m[2]); err == nil {
			seconds += min * 60
		}
	}
	if m[3] != "" {
		if sec, err := strconv.Atoi(m[3]); err == nil {
			seconds += sec
		}
	}
	return seconds
}

func reverse(entries []Entry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}
