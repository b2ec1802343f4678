package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// EndReason reports why a played source terminated. Every source handed to
// PlayerHandle.Play produces exactly one terminal event.
type EndReason int

const (
	EndFinished EndReason = iota // source drained to EOF
	EndErrored                   // source failed mid-stream
	EndStopped                   // terminated by Stop
)

// String returns a human-readable representation of the end reason.
func (r EndReason) String() string {
	switch r {
	case EndErrored:
		return "errored"
	case EndStopped:
		return "stopped"
	default:
		return "finished"
	}
}

// VoiceStateProvider reports which voice channel a user currently
// occupies. Zero means the user is not in a voice channel.
type VoiceStateProvider interface {
	UserVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, error)
}

// VoiceTransport establishes voice-channel connections.
type VoiceTransport interface {
	// Connect joins the given voice channel and returns an exclusive
	// connection handle.
	Connect(ctx context.Context, guildID, channelID snowflake.ID) (ConnectionHandle, error)
}

// ConnectionHandle owns one guild's voice-channel transport.
type ConnectionHandle interface {
	// AttachSink creates the audio-output sink for this connection.
	AttachSink() PlayerHandle

	// ChannelID returns the connected voice channel.
	ChannelID() snowflake.ID

	// Disconnect tears the connection down. Idempotent.
	Disconnect() error
}

// PlayerHandle is the audio-output sink abstraction. All methods are safe
// for concurrent use; playback itself runs on the handle's own goroutine.
type PlayerHandle interface {
	// Play begins asynchronous playback of source at the given volume
	// (percent of nominal, 100 = unity). onEnd is invoked exactly once
	// when the source terminates, with the reason. It is always delivered
	// from the sink's own goroutine, never synchronously from Play or
	// Stop; callers rely on this to hold their own locks across Stop.
	Play(source AudioSource, volumePercent int, onEnd func(EndReason)) error

	// Pause suspends frame delivery without touching the source.
	Pause() error

	// Resume continues a paused sink.
	Resume() error

	// Stop forcibly terminates the active source, producing an EndStopped
	// event. Returns whether a source was actually active.
	Stop() bool

	// SetVolume changes the live volume (percent of nominal).
	SetVolume(percent int)

	// Close stops playback and releases the sink. Idempotent.
	Close()
}
