package domain

// Queue is an ordered sequence of pending tracks. The front of the queue is
// the next track to play; the currently playing track is never a member.
// Push-front exists for "play next" / "play now" semantics and for the
// sound-effect interrupt, which re-fronts the interrupted track.
type Queue struct {
	tracks []Track
}

// NewQueue creates a new empty Queue.
func NewQueue() Queue {
	return Queue{
		tracks: make([]Track, 0),
	}
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of tracks in the queue.
func (q *Queue) Len() int {
	return len(q.tracks)
}

func (q *Queue) isValidIndex(index int) bool {
	return 0 <= index && index < q.Len()
}

// PushBack appends a track to the end of the queue and returns the new length.
func (q *Queue) PushBack(track Track) int {
	q.tracks = append(q.tracks, track)
	return q.Len()
}

// PushFront prepends a track to the queue and returns the new length.
func (q *Queue) PushFront(track Track) int {
	q.tracks = append([]Track{track}, q.tracks...)
	return q.Len()
}

// PopFront removes and returns the front track. Returns nil if the queue is
// empty.
func (q *Queue) PopFront() *Track {
	if q.IsEmpty() {
		return nil
	}
	track := q.tracks[0]
	q.tracks = q.tracks[1:]
	return &track
}

// Front returns the next track without removing it, or nil if the queue is
// empty.
func (q *Queue) Front() *Track {
	if q.IsEmpty() {
		return nil
	}
	return &q.tracks[0]
}

// RemoveAt removes and returns the track at the given index.
// Returns nil if the index is out of bounds. Bounds are checked against the
// live length; callers holding a stale snapshot get nil, not a panic.
func (q *Queue) RemoveAt(index int) *Track {
	if !q.isValidIndex(index) {
		return nil
	}
	track := q.tracks[index]
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)
	return &track
}

// MoveToFront moves the track at the given index to the front of the queue.
// Returns false if the index is out of bounds.
func (q *Queue) MoveToFront(index int) bool {
	if !q.isValidIndex(index) {
		return false
	}
	if index == 0 {
		return true
	}
	track := q.tracks[index]
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)
	q.tracks = append([]Track{track}, q.tracks...)
	return true
}

// List returns a copy of all tracks in queue order.
func (q *Queue) List() []Track {
	result := make([]Track, q.Len())
	copy(result, q.tracks)
	return result
}

// Clear removes all tracks from the queue.
func (q *Queue) Clear() {
	q.tracks = make([]Track, 0)
}
