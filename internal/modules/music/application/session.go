package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/yuzuru-s/kanade/internal/modules/music/application/ports"
	"github.com/yuzuru-s/kanade/internal/modules/music/domain"
)

// DefaultVolume is the initial track and sfx volume (percent of nominal).
const DefaultVolume = 100

// endBookkeeping controls how the next terminal event updates queue and
// history. It is a one-shot override consumed by the transition function;
// the default after every event is endFull.
type endBookkeeping int

const (
	// endFull applies loop-mode reinsertion and pushes the finished track
	// onto the history. This is the natural-end behavior.
	endFull endBookkeeping = iota

	// endHistoryOnly pushes the finished track onto the history but skips
	// loop reinsertion. Used when the caller has already decided what plays
	// next (play-now, play-from-queue).
	endHistoryOnly

	// endNone performs no bookkeeping. Used when the interrupted track has
	// been re-fronted and will resume (sfx interrupt, previous).
	endNone
)

// ToggleResult is the outcome of TogglePause.
type ToggleResult int

const (
	ToggleNoop    ToggleResult = iota // no track active
	TogglePaused                      // playback was paused
	ToggleResumed                     // playback was resumed
)

// String returns a human-readable representation of the toggle result.
func (r ToggleResult) String() string {
	switch r {
	case TogglePaused:
		return "paused"
	case ToggleResumed:
		return "resumed"
	default:
		return "noop"
	}
}

// Status is a point-in-time snapshot of one session's state.
type Status struct {
	GuildID    snowflake.ID
	Connected  bool
	ChannelID  snowflake.ID
	Phase      domain.PlayerPhase
	NowPlaying *domain.Track
	Queue      []domain.Track
	History    []domain.Track
	LoopMode   domain.LoopMode
	Volume     int
	SfxVolume  int
}

// Session owns one guild's playback state: voice connection, audio sink,
// queue, history, loop mode, volumes, and the active stream. Every
// mutation is serialized by the session mutex, and every terminal event
// carries the generation of the stream that produced it, so completions
// racing commands (or arriving after teardown) are detected and dropped.
type Session struct {
	guildID     snowflake.ID
	resolver    ports.TrackResolver
	idleTimeout time.Duration
	onIdle      func() // invoked without the lock held when the idle window expires

	mu         sync.Mutex
	conn       ports.ConnectionHandle
	player     ports.PlayerHandle
	queue      domain.Queue
	history    domain.History
	nowPlaying *domain.Track
	phase      domain.PlayerPhase
	loopMode   domain.LoopMode
	volume     int
	sfxVolume  int

	// generation identifies the active stream. It is bumped on every track
	// start and on teardown; a terminal event tagged with anything else is
	// stale and ignored.
	generation    uint64
	source        ports.AudioSource
	resolveCancel context.CancelFunc
	idleTimer     *time.Timer
	endPolicy     endBookkeeping
	closed        bool
}

func newSession(
	guildID snowflake.ID,
	conn ports.ConnectionHandle,
	player ports.PlayerHandle,
	resolver ports.TrackResolver,
	idleTimeout time.Duration,
	onIdle func(),
) *Session {
	return &Session{
		guildID:     guildID,
		conn:        conn,
		player:      player,
		resolver:    resolver,
		idleTimeout: idleTimeout,
		onIdle:      onIdle,
		queue:       domain.NewQueue(),
		history:     domain.NewHistory(),
		phase:       domain.PhaseIdle,
		loopMode:    domain.LoopModeNone,
		volume:      DefaultVolume,
		sfxVolume:   DefaultVolume,
	}
}

// GuildID returns the guild this session belongs to.
func (s *Session) GuildID() snowflake.ID {
	return s.guildID
}

// Enqueue appends a track to the queue and returns the new queue length.
// It never starts playback.
func (s *Session) Enqueue(track domain.Track) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.PushBack(track)
}

// EnqueueFront prepends a track to the queue and returns the new queue
// length. It never starts playback.
func (s *Session) EnqueueFront(track domain.Track) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.PushFront(track)
}

// DequeueFront removes and returns the next queued track, or nil if the
// queue is empty.
func (s *Session) DequeueFront() *domain.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.PopFront()
}

// EnqueueMode selects where an enqueued track is placed and whether it
// preempts the current one.
type EnqueueMode int

const (
	ModeQueue EnqueueMode = iota // append to the queue
	ModeNext                     // prepend to the queue
	ModeNow                      // prepend and preempt the current track
)

// ParseEnqueueMode converts a string to an EnqueueMode. The empty string
// means plain queueing.
func ParseEnqueueMode(s string) (EnqueueMode, error) {
	switch s {
	case "", "queue":
		return ModeQueue, nil
	case "next":
		return ModeNext, nil
	case "now":
		return ModeNow, nil
	default:
		return ModeQueue, fmt.Errorf("unknown enqueue mode %q", s)
	}
}

// EnqueueAndPlay places a track according to mode and starts playback if
// the session is idle. The returned position is 1-based within the queue;
// zero means the track is starting now. The whole operation holds the
// session lock once, so the reported position is the position the track
// actually got.
func (s *Session) EnqueueAndPlay(track domain.Track, mode EnqueueMode) (position int, startedNow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, false
	}

	if s.phase == domain.PhaseIdle {
		s.queue.PushBack(track)
		next := s.queue.PopFront()
		s.startTrackLocked(*next)
		return 0, true
	}

	switch mode {
	case ModeNext:
		// A front insert always lands at position 1 regardless of how long
		// the queue already is.
		s.queue.PushFront(track)
		return 1, false
	case ModeNow:
		s.queue.PushFront(track)
		// The interrupted track is abandoned: it goes to history like a
		// skip, but loop reinsertion is suppressed so it cannot jump ahead
		// of the preempting track.
		s.endPolicy = endHistoryOnly
		s.player.Stop()
		return 0, true
	default:
		return s.queue.PushBack(track), false
	}
}

// EnqueueAll appends tracks in order and starts playback if the session is
// idle. Returns the number of tracks queued (excluding one started now)
// and whether playback started.
func (s *Session) EnqueueAll(tracks []domain.Track) (queued int, startedNow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(tracks) == 0 {
		return 0, false
	}

	for _, track := range tracks {
		s.queue.PushBack(track)
	}
	if s.phase == domain.PhaseIdle {
		next := s.queue.PopFront()
		s.startTrackLocked(*next)
		return len(tracks) - 1, true
	}
	return len(tracks), false
}

// RemoveAt removes the track at the given 0-based queue index. The index
// is validated against the live queue length at call time.
func (s *Session) RemoveAt(index int) (*domain.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	track := s.queue.RemoveAt(index)
	if track == nil {
		return nil, ErrTrackNotFound
	}
	return track, nil
}

// MoveToFront moves the track at the given 0-based queue index to the
// front of the queue.
func (s *Session) MoveToFront(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.queue.MoveToFront(index) {
		return ErrTrackNotFound
	}
	return nil
}

// ClearQueue removes all pending tracks. The current track keeps playing.
func (s *Session) ClearQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Clear()
}

// ClearHistory removes all finished tracks from the history.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
}

// SetLoopMode sets the loop mode.
func (s *Session) SetLoopMode(mode domain.LoopMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopMode = mode
}

// SetVolume sets the track volume. Levels outside [0, 200] are rejected
// before any state changes. A live non-effect track picks the level up
// immediately.
func (s *Session) SetVolume(level int) error {
	if level < 0 || level > 200 {
		return ErrVolumeOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.volume = level
	if s.phase.IsActive() && s.nowPlaying != nil && !s.nowPlaying.IsSoundEffect() {
		s.player.SetVolume(level)
	}
	return nil
}

// SetSfxVolume sets the sound-effect volume, with the same validation as
// SetVolume. A live sound effect picks the level up immediately.
func (s *Session) SetSfxVolume(level int) error {
	if level < 0 || level > 200 {
		return ErrVolumeOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sfxVolume = level
	if s.phase.IsActive() && s.nowPlaying != nil && s.nowPlaying.IsSoundEffect() {
		s.player.SetVolume(level)
	}
	return nil
}

// TogglePause pauses an active track or resumes a paused one. Queue and
// history are untouched; this is purely sink-level.
func (s *Session) TogglePause() ToggleResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case domain.PhasePlaying, domain.PhasePlayingSfx:
		if err := s.player.Pause(); err != nil {
			slog.Warn("failed to pause sink", "guild", s.guildID, "error", err)
			return ToggleNoop
		}
		s.phase = domain.PhasePaused
		return TogglePaused
	case domain.PhasePaused:
		if err := s.player.Resume(); err != nil {
			slog.Warn("failed to resume sink", "guild", s.guildID, "error", err)
			return ToggleNoop
		}
		s.phase = s.phaseForTrackLocked()
		return ToggleResumed
	default:
		return ToggleNoop
	}
}

// Skip terminates the active stream, if any, and reports whether anything
// was actually playing. The advance itself happens when the forced
// termination arrives through the same transition as a natural end, so
// skip never duplicates end-of-track bookkeeping. Calling Skip while a
// prior termination is still being processed is a harmless no-op.
func (s *Session) Skip() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.phase.IsActive() {
		return false
	}
	return s.player.Stop()
}

// PlaySfx interrupts the current track with a short effect. There is no
// audio mixing: the current track is re-fronted behind the effect and the
// effect preempts it, so playback resumes from the interrupted track once
// the effect drains. An idle session just plays the effect.
func (s *Session) PlaySfx(track domain.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if s.phase == domain.PhaseIdle {
		s.startTrackLocked(track)
		return
	}

	// Re-front the interrupted track so it resumes after the effect. An
	// interrupted effect is not re-fronted; stacking effects replays none
	// of them.
	if s.nowPlaying != nil && !s.nowPlaying.IsSoundEffect() {
		s.queue.PushFront(*s.nowPlaying)
	}
	s.queue.PushFront(track)
	s.endPolicy = endNone
	s.player.Stop()
}

// PlayPrevious replays the most recently finished track. The current
// track is re-fronted behind it and the forced termination carries no
// bookkeeping, so nothing is dropped or duplicated across the cycle.
func (s *Session) PlayPrevious() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history.IsEmpty() {
		return ErrNoHistory
	}

	prev := s.history.PopMostRecent()

	if s.phase.IsActive() {
		if s.nowPlaying != nil {
			s.queue.PushFront(*s.nowPlaying)
		}
		s.queue.PushFront(*prev)
		s.endPolicy = endNone
		s.player.Stop()
		return nil
	}

	s.startTrackLocked(*prev)
	return nil
}

// PlayFromQueueAt jumps to the queue entry at the given 0-based index.
// The abandoned current track goes to history; loop reinsertion is
// suppressed so the selected track actually plays next.
func (s *Session) PlayFromQueueAt(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.queue.MoveToFront(index) {
		return ErrTrackNotFound
	}

	if s.phase.IsActive() {
		s.endPolicy = endHistoryOnly
		s.player.Stop()
		return nil
	}

	next := s.queue.PopFront()
	s.startTrackLocked(*next)
	return nil
}

// Status returns a snapshot of the session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	var channelID snowflake.ID
	if s.conn != nil {
		channelID = s.conn.ChannelID()
	}

	return Status{
		GuildID:    s.guildID,
		Connected:  !s.closed,
		ChannelID:  channelID,
		Phase:      s.phase,
		NowPlaying: s.nowPlaying,
		Queue:      s.queue.List(),
		History:    s.history.List(),
		LoopMode:   s.loopMode,
		Volume:     s.volume,
		SfxVolume:  s.sfxVolume,
	}
}

// phaseForTrackLocked returns the active phase matching the current track.
func (s *Session) phaseForTrackLocked() domain.PlayerPhase {
	if s.nowPlaying != nil && s.nowPlaying.IsSoundEffect() {
		return domain.PhasePlayingSfx
	}
	return domain.PhasePlaying
}

// startTrackLocked begins playback of track. The caller holds the lock.
// Source acquisition runs on its own goroutine so a slow resolver blocks
// only this guild's session, and only for callers that need the lock.
func (s *Session) startTrackLocked(track domain.Track) {
	s.stopIdleTimerLocked()

	s.generation++
	gen := s.generation
	s.nowPlaying = &track
	s.phase = s.phaseForTrackLocked()

	if s.resolveCancel != nil {
		s.resolveCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.resolveCancel = cancel

	go s.acquireAndPlay(ctx, gen, track)
}

// acquireAndPlay resolves the audio source for track and feeds it to the
// sink, unless a newer stream has superseded this one in the meantime.
func (s *Session) acquireAndPlay(ctx context.Context, gen uint64, track domain.Track) {
	source, err := s.resolver.OpenAudioSource(ctx, track)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.generation {
		// A skip, leave, or newer play happened while resolving.
		if source != nil {
			source.Close()
		}
		return
	}

	if err != nil {
		// The design here deliberately advances past a track whose source
		// cannot be acquired instead of stalling the queue on it. The
		// poisoned track lands in history and is never loop-reinserted.
		slog.Error("failed to acquire audio source",
			"guild", s.guildID, "track", track.Title, "error", err)
		if !track.IsSoundEffect() {
			s.history.Push(track)
		}
		s.nowPlaying = nil
		s.startNextLocked()
		return
	}

	volume := s.volume
	if track.IsSoundEffect() {
		volume = s.sfxVolume
	}

	s.source = source
	if err := s.player.Play(source, volume, func(reason ports.EndReason) {
		s.handleStreamEnd(gen, reason)
	}); err != nil {
		slog.Error("failed to start playback",
			"guild", s.guildID, "track", track.Title, "error", err)
		source.Close()
		s.source = nil
		if !track.IsSoundEffect() {
			s.history.Push(track)
		}
		s.nowPlaying = nil
		s.startNextLocked()
		return
	}

	slog.Info("started track",
		"guild", s.guildID, "track", track.Title, "source", track.Kind.String())
}

// handleStreamEnd is the single transition function for stream termination.
// Finish, error, and forced stop all arrive here; the generation check at
// the top makes stale completions a no-op regardless of how they raced
// against commands.
func (s *Session) handleStreamEnd(gen uint64, reason ports.EndReason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.generation {
		slog.Debug("ignoring stale stream termination",
			"guild", s.guildID, "generation", gen, "reason", reason.String())
		return
	}

	if s.source != nil {
		s.source.Close()
		s.source = nil
	}

	policy := s.endPolicy
	s.endPolicy = endFull

	finished := s.nowPlaying
	s.nowPlaying = nil

	if finished != nil {
		slog.Info("track ended",
			"guild", s.guildID, "track", finished.Title, "reason", reason.String())

		// Sound effects never loop and never enter history; they are
		// interrupts, not queue entries.
		if !finished.IsSoundEffect() {
			if policy == endFull {
				switch s.loopMode {
				case domain.LoopModeTrack:
					s.queue.PushFront(*finished)
				case domain.LoopModeQueue:
					s.queue.PushBack(*finished)
				}
			}
			// Loop and history are independent: a finished track is
			// recorded even when loop mode reinserts it.
			if policy != endNone {
				s.history.Push(*finished)
			}
		}
	}

	s.startNextLocked()
}

// startNextLocked pulls the next queued track, or goes idle and arms the
// auto-disconnect window when the queue is drained.
func (s *Session) startNextLocked() {
	if next := s.queue.PopFront(); next != nil {
		s.startTrackLocked(*next)
		return
	}

	s.phase = domain.PhaseIdle
	s.armIdleTimerLocked()
}

func (s *Session) armIdleTimerLocked() {
	s.stopIdleTimerLocked()
	if s.idleTimeout <= 0 || s.onIdle == nil {
		return
	}
	s.idleTimer = time.AfterFunc(s.idleTimeout, s.handleIdleTimeout)
}

func (s *Session) stopIdleTimerLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

// handleIdleTimeout removes the session if nothing started playing since
// the queue drained. The idle callback runs without the lock held because
// it re-enters the session through Registry.Remove.
func (s *Session) handleIdleTimeout() {
	s.mu.Lock()
	if s.closed || s.phase != domain.PhaseIdle || !s.queue.IsEmpty() || s.nowPlaying != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	slog.Info("idle window elapsed, leaving voice channel", "guild", s.guildID)
	s.onIdle()
}

// close tears the session down: the active stream and its extractor
// process are terminated, the sink and connection released, and queue and
// history cleared. Idempotent; late terminal events are dropped by the
// generation bump.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	if s.resolveCancel != nil {
		s.resolveCancel()
		s.resolveCancel = nil
	}
	s.stopIdleTimerLocked()

	player := s.player
	conn := s.conn
	source := s.source
	s.source = nil
	s.nowPlaying = nil
	s.phase = domain.PhaseIdle
	s.queue.Clear()
	s.history.Clear()
	s.mu.Unlock()

	// Release resources outside the lock; the sink may deliver a final
	// stopped event, which the generation bump already made stale.
	if player != nil {
		player.Close()
	}
	if source != nil {
		source.Close()
	}
	if conn != nil {
		if err := conn.Disconnect(); err != nil {
			slog.Warn("failed to disconnect voice", "guild", s.guildID, "error", err)
		}
	}
}
