package domain

// PlayerPhase is the playback state of a session's sequencer.
type PlayerPhase int

const (
	PhaseIdle       PlayerPhase = iota // connected, nothing playing
	PhasePlaying                       // a regular track is active
	PhasePaused                        // sink paused, queue/history untouched
	PhasePlayingSfx                    // a sound effect has interrupted playback
)

// String returns a human-readable representation of the phase.
func (p PlayerPhase) String() string {
	switch p {
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhasePlayingSfx:
		return "playing_sfx"
	default:
		return "idle"
	}
}

// IsActive reports whether a track is currently attached to the sink.
func (p PlayerPhase) IsActive() bool {
	return p == PhasePlaying || p == PhasePaused || p == PhasePlayingSfx
}
