package ports

import (
	"context"
	"io"

	"github.com/yuzuru-s/kanade/internal/modules/music/domain"
)

// AudioSource is a stream of 48kHz stereo signed 16-bit little-endian PCM.
// Close terminates the underlying extractor process tree and must be
// idempotent; after Close, Read returns an error or io.EOF.
type AudioSource interface {
	io.ReadCloser
}

// TrackResolver turns queries, URLs, and storage keys into track metadata,
// and tracks into playable audio sources.
type TrackResolver interface {
	// ResolveOne resolves a single query or URL into a track. A query
	// that matches nothing is an error.
	ResolveOne(ctx context.Context, query string) (domain.Track, error)

	// Search returns up to limit tracks matching the query.
	Search(ctx context.Context, query string, limit int) ([]domain.Track, error)

	// ResolvePlaylist expands a playlist URL into its tracks, in order.
	ResolvePlaylist(ctx context.Context, url string) ([]domain.Track, error)

	// OpenAudioSource acquires a PCM stream for the track. Cancelling ctx
	// while acquisition is in flight kills the extractor process.
	OpenAudioSource(ctx context.Context, track domain.Track) (AudioSource, error)
}

// SoundEffectResolver maps soundboard effect identifiers to tracks.
type SoundEffectResolver interface {
	// ResolveEffect returns the track for the given effect identifier.
	// An unknown effect is an error.
	ResolveEffect(ctx context.Context, effectID string) (domain.Track, error)
}
