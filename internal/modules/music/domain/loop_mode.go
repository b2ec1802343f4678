package domain

import "fmt"

// LoopMode represents the loop mode for queue playback.
type LoopMode int

const (
	LoopModeNone  LoopMode = iota // Default: no looping
	LoopModeTrack                 // Reinsert the finished track at the queue front
	LoopModeQueue                 // Append the finished track at the queue end
)

// String returns a human-readable representation of the loop mode.
func (m LoopMode) String() string {
	switch m {
	case LoopModeTrack:
		return "track"
	case LoopModeQueue:
		return "queue"
	default:
		return "none"
	}
}

// ParseLoopMode converts a string to a LoopMode. Anything outside
// {none, track, queue} is rejected before any state is touched.
func ParseLoopMode(s string) (LoopMode, error) {
	switch s {
	case "none":
		return LoopModeNone, nil
	case "track":
		return LoopModeTrack, nil
	case "queue":
		return LoopModeQueue, nil
	default:
		return LoopModeNone, fmt.Errorf("unknown loop mode %q", s)
	}
}
