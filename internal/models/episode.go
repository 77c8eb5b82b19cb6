package models

import (
	"io"
	"math"
	"time"
)

// StoredEpisode is one offline copy of a catalog episode: its metadata plus
// the complete audio payload. At most one record exists per episode id.
type StoredEpisode struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	AudioData    []byte    `json:"-"`
	DownloadedAt time.Time `json:"downloaded_at"`
	LastAccessed time.Time `json:"last_accessed"`
	FileSize     int64     `json:"file_size"`
}

// EpisodeMeta is the payload-free view of a stored episode, used for
// listings and eviction decisions.
type EpisodeMeta struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	DownloadedAt time.Time `json:"downloaded_at"`
	LastAccessed time.Time `json:"last_accessed"`
	FileSize     int64     `json:"file_size"`
}

// Meta returns the metadata view of the episode.
func (e *StoredEpisode) Meta() EpisodeMeta {
	return EpisodeMeta{
		ID:           e.ID,
		Title:        e.Title,
		DownloadedAt: e.DownloadedAt,
		LastAccessed: e.LastAccessed,
		FileSize:     e.FileSize,
	}
}

// StorageQuota is a point-in-time snapshot of the storage budget.
// Total == 0 means the budget is unknown; callers must treat Available
// as unbounded in that case.
type StorageQuota struct {
	Used      int64 `json:"used"`
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
}

// UnknownQuota is the sentinel returned when no storage budget is
// configured.
func UnknownQuota(used int64) StorageQuota {
	return StorageQuota{Used: used, Total: 0, Available: math.MaxInt64}
}

// Unknown reports whether the quota carries no real budget.
func (q StorageQuota) Unknown() bool {
	return q.Total == 0
}

// PlaybackRef is a freshly produced handle to a stored episode's audio,
// ready to be served as an ordinary audio source. The content reader
// supports seeking so range requests work.
type PlaybackRef struct {
	ID           int64
	Title        string
	FileSize     int64
	DownloadedAt time.Time
	Content      io.ReadSeeker
}
