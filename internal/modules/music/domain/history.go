package domain

// History is the list of finished tracks, most recently finished first.
// Growth is unbounded: the design keeps every finished track for the
// lifetime of the session, matching the queue it belongs to.
type History struct {
	tracks []Track
}

// NewHistory creates a new empty History.
func NewHistory() History {
	return History{
		tracks: make([]Track, 0),
	}
}

// Len returns the number of tracks in the history.
func (h *History) Len() int {
	return len(h.tracks)
}

// IsEmpty returns true if the history has no tracks.
func (h *History) IsEmpty() bool {
	return h.Len() == 0
}

// Push records a finished track as the most recent entry.
func (h *History) Push(track Track) {
	h.tracks = append([]Track{track}, h.tracks...)
}

// PopMostRecent removes and returns the most recently finished track.
// Returns nil if the history is empty.
func (h *History) PopMostRecent() *Track {
	if h.IsEmpty() {
		return nil
	}
	track := h.tracks[0]
	h.tracks = h.tracks[1:]
	return &track
}

// List returns a copy of the history, most recent first.
func (h *History) List() []Track {
	result := make([]Track, h.Len())
	copy(result, h.tracks)
	return result
}

// Clear removes all tracks from the history.
func (h *History) Clear() {
	h.tracks = make([]Track, 0)
}
