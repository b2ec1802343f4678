package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/yuzuru-s/kanade/internal/modules/music/application/ports"
	"github.com/yuzuru-s/kanade/internal/modules/music/domain"
)

// PlayerService is the operation surface consumed by the slash-command
// handlers and the dashboard API. It translates caller intent into
// registry and session operations; authorization has already happened by
// the time a call lands here.
type PlayerService struct {
	registry *Registry
	resolver ports.TrackResolver
	effects  ports.SoundEffectResolver
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(registry *Registry, resolver ports.TrackResolver, effects ports.SoundEffectResolver) *PlayerService {
	return &PlayerService{
		registry: registry,
		resolver: resolver,
		effects:  effects,
	}
}

// JoinInput contains the input for the Join operation.
type JoinInput struct {
	GuildID        snowflake.ID
	VoiceChannelID snowflake.ID
}

// Join connects the bot to a voice channel. Joining a guild that already
// has a session is a successful no-op.
func (p *PlayerService) Join(ctx context.Context, input JoinInput) error {
	_, err := p.registry.GetOrCreate(ctx, input.GuildID, JoinContext{ChannelID: input.VoiceChannelID})
	return err
}

// Leave disconnects from the guild's voice channel and discards the
// session, including its queue and history.
func (p *PlayerService) Leave(guildID snowflake.ID) error {
	if p.registry.Get(guildID) == nil {
		return ErrNotConnected
	}
	p.registry.Remove(guildID)
	return nil
}

// EnqueueInput contains the input for the Enqueue operation.
type EnqueueInput struct {
	GuildID snowflake.ID
	Query   string
	Mode    EnqueueMode
}

// EnqueueOutput contains the result of the Enqueue operation.
type EnqueueOutput struct {
	Track      domain.Track
	Position   int  // 1-based queue position; 0 when the track is starting now
	StartedNow bool // true when the track went straight to the sink
}

// Enqueue resolves a query or URL into a track and places it according to
// the mode. When the session is idle the track starts immediately and the
// output says "now playing" rather than reporting a position.
func (p *PlayerService) Enqueue(ctx context.Context, input EnqueueInput) (*EnqueueOutput, error) {
	session := p.registry.Get(input.GuildID)
	if session == nil {
		return nil, ErrNotConnected
	}

	track, err := p.resolver.ResolveOne(ctx, input.Query)
	if err != nil {
		return nil, resolveErr(err)
	}

	position, startedNow := session.EnqueueAndPlay(track, input.Mode)
	return &EnqueueOutput{
		Track:      track,
		Position:   position,
		StartedNow: startedNow,
	}, nil
}

// EnqueueTrack places an already-resolved track according to the mode.
// The dashboard uses this to play library entries straight from their
// storage keys without a query round-trip.
func (p *PlayerService) EnqueueTrack(guildID snowflake.ID, track domain.Track, mode EnqueueMode) (*EnqueueOutput, error) {
	session := p.registry.Get(guildID)
	if session == nil {
		return nil, ErrNotConnected
	}

	position, startedNow := session.EnqueueAndPlay(track, mode)
	return &EnqueueOutput{
		Track:      track,
		Position:   position,
		StartedNow: startedNow,
	}, nil
}

// EnqueuePlaylistInput contains the input for the EnqueuePlaylist operation.
type EnqueuePlaylistInput struct {
	GuildID snowflake.ID
	URL     string
}

// EnqueuePlaylistOutput contains the result of the EnqueuePlaylist operation.
type EnqueuePlaylistOutput struct {
	First      *domain.Track
	Queued     int // tracks placed in the queue, excluding one started now
	StartedNow bool
}

// EnqueuePlaylist expands a playlist URL and appends every entry.
func (p *PlayerService) EnqueuePlaylist(ctx context.Context, input EnqueuePlaylistInput) (*EnqueuePlaylistOutput, error) {
	session := p.registry.Get(input.GuildID)
	if session == nil {
		return nil, ErrNotConnected
	}

	tracks, err := p.resolver.ResolvePlaylist(ctx, input.URL)
	if err != nil {
		return nil, resolveErr(err)
	}
	if len(tracks) == 0 {
		return nil, ErrNoResults
	}

	queued, startedNow := session.EnqueueAll(tracks)
	return &EnqueuePlaylistOutput{
		First:      &tracks[0],
		Queued:     queued,
		StartedNow: startedNow,
	}, nil
}

// Skip terminates the current track. The queue advances through the
// normal end-of-track transition.
func (p *PlayerService) Skip(guildID snowflake.ID) error {
	session := p.registry.Get(guildID)
	if session == nil {
		return ErrNotConnected
	}
	if !session.Skip() {
		return ErrNothingPlaying
	}
	return nil
}

// TogglePause pauses or resumes the current track.
func (p *PlayerService) TogglePause(guildID snowflake.ID) (ToggleResult, error) {
	session := p.registry.Get(guildID)
	if session == nil {
		return ToggleNoop, ErrNotConnected
	}
	return session.TogglePause(), nil
}

// PlayPrevious replays the most recently finished track.
func (p *PlayerService) PlayPrevious(guildID snowflake.ID) error {
	session := p.registry.Get(guildID)
	if session == nil {
		return ErrNotConnected
	}
	return session.PlayPrevious()
}

// SetLoop sets the loop mode from its string form. Unknown modes are
// rejected before any state changes.
func (p *PlayerService) SetLoop(guildID snowflake.ID, mode string) (domain.LoopMode, error) {
	session := p.registry.Get(guildID)
	if session == nil {
		return domain.LoopModeNone, ErrNotConnected
	}

	parsed, err := domain.ParseLoopMode(mode)
	if err != nil {
		return domain.LoopModeNone, ErrInvalidLoopMode
	}

	session.SetLoopMode(parsed)
	return parsed, nil
}

// SetVolume sets the track volume for the guild.
func (p *PlayerService) SetVolume(guildID snowflake.ID, level int) error {
	session := p.registry.Get(guildID)
	if session == nil {
		return ErrNotConnected
	}
	return session.SetVolume(level)
}

// SetSfxVolume sets the sound-effect volume for the guild.
func (p *PlayerService) SetSfxVolume(guildID snowflake.ID, level int) error {
	session := p.registry.Get(guildID)
	if session == nil {
		return ErrNotConnected
	}
	return session.SetSfxVolume(level)
}

// PlaySfx interrupts playback with a soundboard effect.
func (p *PlayerService) PlaySfx(ctx context.Context, guildID snowflake.ID, effectID string) (*domain.Track, error) {
	session := p.registry.Get(guildID)
	if session == nil {
		return nil, ErrNotConnected
	}

	track, err := p.effects.ResolveEffect(ctx, effectID)
	if err != nil {
		return nil, resolveErr(err)
	}

	session.PlaySfx(track)
	return &track, nil
}

// RemoveFromQueue removes the queue entry at the given 0-based index.
func (p *PlayerService) RemoveFromQueue(guildID snowflake.ID, index int) (*domain.Track, error) {
	session := p.registry.Get(guildID)
	if session == nil {
		return nil, ErrNotConnected
	}
	return session.RemoveAt(index)
}

// MoveToFront moves the queue entry at the given 0-based index to the
// front.
func (p *PlayerService) MoveToFront(guildID snowflake.ID, index int) error {
	session := p.registry.Get(guildID)
	if session == nil {
		return ErrNotConnected
	}
	return session.MoveToFront(index)
}

// ClearQueue discards all pending tracks.
func (p *PlayerService) ClearQueue(guildID snowflake.ID) error {
	session := p.registry.Get(guildID)
	if session == nil {
		return ErrNotConnected
	}
	session.ClearQueue()
	return nil
}

// ClearHistory discards the play history.
func (p *PlayerService) ClearHistory(guildID snowflake.ID) error {
	session := p.registry.Get(guildID)
	if session == nil {
		return ErrNotConnected
	}
	session.ClearHistory()
	return nil
}

// PlayFromQueueAt jumps to the queue entry at the given 0-based index.
func (p *PlayerService) PlayFromQueueAt(guildID snowflake.ID, index int) error {
	session := p.registry.Get(guildID)
	if session == nil {
		return ErrNotConnected
	}
	return session.PlayFromQueueAt(index)
}

// Status returns a snapshot of the guild's playback state. A guild with
// no session reports Connected=false rather than an error.
func (p *PlayerService) Status(guildID snowflake.ID) Status {
	session := p.registry.Get(guildID)
	if session == nil {
		return Status{GuildID: guildID}
	}
	return session.Status()
}

// resolveErr maps resolver failures onto the service error taxonomy,
// keeping the cause in the chain.
func resolveErr(err error) error {
	if errors.Is(err, ErrNoResults) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrResolveFailed, err)
}
