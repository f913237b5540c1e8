// Package storage persists channel snapshots and frame artifacts on disk.
//
// Layout under the cache root:
//
//	<root>/<fingerprint>/metadata.json      versioned channel snapshot
//	<root>/<fingerprint>/frames/<id>.png    one artifact per captured frame
//
// The fingerprint is a stable hash of the channel URL, so every run of the
// same channel lands in the same directory without a lookup table.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"ytframes/internal/model"
)

// SnapshotVersion is the current snapshot format version. Snapshots written
// with any other version are discarded wholesale on load.
const SnapshotVersion = 1

const fingerprintLen = 16

// Snapshot is a fully-replaced, versioned copy of a channel's video list.
type Snapshot struct {
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	Videos    []model.Video `json:"videos"`
}

// Cache is the on-disk store for channel snapshots, keyed by channel
// fingerprint. A Cache never fails a run: corrupt or stale data reads as
// a miss and forces a re-fetch.
type Cache struct {
	root string
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{root: dir}
}

// Fingerprint derives the filesystem-safe storage key for a channel URL:
// the first 16 hex characters of its SHA-256 digest.
func Fingerprint(channelURL string) string {
	sum := sha256.Sum256([]byte(channelURL))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// ChannelDir returns the storage directory for a channel.
func (c *Cache) ChannelDir(channelURL string) string {
	return filepath.Join(c.root, Fingerprint(channelURL))
}

// FrameDir returns the frame artifact directory for a channel.
func (c *Cache) FrameDir(channelURL string) string {
	return filepath.Join(c.ChannelDir(channelURL), "frames")
}

// FramePath returns the deterministic artifact path for one video.
func (c *Cache) FramePath(channelURL, videoID string) string {
	return filepath.Join(c.FrameDir(channelURL), videoID+".png")
}

func (c *Cache) snapshotPath(channelURL string) string {
	return filepath.Join(c.ChannelDir(channelURL), "metadata.json")
}

// Load returns the cached video list for a channel, or (nil, false) when no
// usable snapshot exists. A missing file, malformed payload, or version
// mismatch is a miss, never an error.
func (c *Cache) Load(channelURL string) ([]model.Video, bool) {
	data, err := os.ReadFile(c.snapshotPath(channelURL))
	if err != nil {
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false
	}
	if snap.Version != SnapshotVersion {
		return nil, false
	}

	videos := make([]model.Video, 0, len(snap.Videos))
	for _, v := range snap.Videos {
		if v.ID == "" || v.URL == "" {
			continue
		}
		videos = append(videos, v)
	}
	return videos, true
}

// Store atomically replaces the channel's snapshot with the given list,
// creating the channel directory if absent. A concurrent reader sees either
// the old snapshot or the new one, never a partial write.
func (c *Cache) Store(channelURL string, videos []model.Video) error {
	snap := Snapshot{
		Version:   SnapshotVersion,
		CreatedAt: time.Now().UTC(),
		Videos:    videos,
	}
	return atomicWriteJSON(c.snapshotPath(channelURL), snap)
}
