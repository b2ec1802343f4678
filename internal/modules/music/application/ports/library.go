package ports

import (
	"context"
	"time"

	"github.com/yuzuru-s/kanade/internal/modules/music/domain"
)

// LibraryQuery filters and orders a library listing.
type LibraryQuery struct {
	Search string
	Artist string
	Album  string
	Sort   string // title, artist, album, duration
	Order  string // asc, desc
}

// LibraryEntry describes one audio file in the object-storage library.
type LibraryEntry struct {
	Key          string
	Filename     string
	Title        string
	Artist       string
	Album        string
	Duration     *time.Duration
	Size         int64
	LastModified time.Time
}

// StorageLibrary lists the object-storage music library for browsing and
// turns stored files into playable tracks.
type StorageLibrary interface {
	// ListTracks returns library entries matching the query.
	ListTracks(ctx context.Context, query LibraryQuery) ([]LibraryEntry, error)

	// TrackForKey builds a playable track for the given storage key.
	TrackForKey(ctx context.Context, key string) (domain.Track, error)
}
