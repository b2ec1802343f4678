package domain

import (
	"strconv"
	"time"
)

// Track represents a playable audio item. It is immutable once constructed.
type Track struct {
	Title        string
	Locator      string         // opaque to everything but the resolver: URL or storage key
	Duration     *time.Duration // nil when the source did not report a duration
	Artist       string
	Album        string // empty when unknown
	ThumbnailURL string // empty when unknown
	Kind         SourceKind
}

// NewTrack creates a new Track with the given parameters.
func NewTrack(title, locator string, duration *time.Duration, artist string, kind SourceKind) Track {
	return Track{
		Title:    title,
		Locator:  locator,
		Duration: duration,
		Artist:   artist,
		Kind:     kind,
	}
}

// DurationSeconds converts a known duration in whole seconds into the form
// Track carries. Zero is a valid known duration, distinct from unknown.
func DurationSeconds(seconds int) *time.Duration {
	d := time.Duration(seconds) * time.Second
	return &d
}

// IsSoundEffect reports whether the track is a short interrupt effect rather
// than a regular queue entry.
func (t *Track) IsSoundEffect() bool {
	return t.Kind == SourceKindSoundEffect
}

// FormattedDuration returns the duration as a human-readable string
// (mm:ss or hh:mm:ss). An unknown duration renders as "--:--", which is
// deliberately distinct from a zero-length track's "00:00".
func (t *Track) FormattedDuration() string {
	if t.Duration == nil {
		return "--:--"
	}

	totalSeconds := int(t.Duration.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return pad(hours) + ":" + pad(minutes) + ":" + pad(seconds)
	}
	return pad(minutes) + ":" + pad(seconds)
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
