package application

import "errors"

// User-visible failures for the music module. All of these are local,
// recoverable, per-call errors; none of them tears down a session.
var (
	// ErrNotConnected is returned when an operation requires an active voice
	// connection and none exists for the guild.
	ErrNotConnected = errors.New("not connected to a voice channel")

	// ErrNothingPlaying is returned when pause/skip/previous is requested
	// with no active track.
	ErrNothingPlaying = errors.New("nothing is currently playing")

	// ErrNoHistory is returned by PlayPrevious when the history is empty.
	ErrNoHistory = errors.New("playback history is empty")

	// ErrInvalidLoopMode is returned for loop modes outside {none, track, queue}.
	ErrInvalidLoopMode = errors.New("invalid loop mode")

	// ErrVolumeOutOfRange is returned for volume levels outside [0, 200].
	// The stored volume is left untouched.
	ErrVolumeOutOfRange = errors.New("volume must be between 0 and 200")

	// ErrTrackNotFound is returned for queue indices that are out of bounds
	// at call time. Indices are always re-validated against the live queue.
	ErrTrackNotFound = errors.New("no track at that queue position")

	// ErrNoResults is returned when a query or effect lookup matched nothing.
	ErrNoResults = errors.New("no results found")

	// ErrResolveFailed is returned when the external resolver failed to
	// produce metadata or an audio source. The session stays connected.
	ErrResolveFailed = errors.New("failed to resolve track")

	// ErrJoinFailed is returned when establishing the voice connection
	// failed. No partial session is left registered.
	ErrJoinFailed = errors.New("failed to join voice channel")
)
