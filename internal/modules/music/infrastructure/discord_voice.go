package infrastructure

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/yuzuru-s/kanade/internal/modules/music/application/ports"
	"layeh.com/gopus"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// Compile-time checks that the voice types implement the ports interfaces.
var (
	_ ports.VoiceTransport   = (*DiscordVoiceTransport)(nil)
	_ ports.ConnectionHandle = (*voiceConnection)(nil)
	_ ports.PlayerHandle     = (*opusSink)(nil)
)

// DiscordVoiceTransport establishes voice connections through the bot's
// gateway session.
type DiscordVoiceTransport struct {
	session *discordgo.Session
}

// NewDiscordVoiceTransport creates a new DiscordVoiceTransport.
func NewDiscordVoiceTransport(session *discordgo.Session) *DiscordVoiceTransport {
	return &DiscordVoiceTransport{session: session}
}

// Connect joins the given voice channel, unmuted and deafened.
func (t *DiscordVoiceTransport) Connect(_ context.Context, guildID, channelID snowflake.ID) (ports.ConnectionHandle, error) {
	vc, err := t.session.ChannelVoiceJoin(guildID.String(), channelID.String(), false, true)
	if err != nil {
		return nil, fmt.Errorf("joining voice channel %s: %w", channelID, err)
	}
	return &voiceConnection{vc: vc, channelID: channelID}, nil
}

type voiceConnection struct {
	vc        *discordgo.VoiceConnection
	channelID snowflake.ID
}

func (c *voiceConnection) AttachSink() ports.PlayerHandle {
	return newOpusSink(c.vc)
}

func (c *voiceConnection) ChannelID() snowflake.ID {
	return c.channelID
}

func (c *voiceConnection) Disconnect() error {
	return c.vc.Disconnect()
}

// opusSink encodes 48kHz stereo s16le PCM into Opus frames and pushes
// them onto the voice connection. One source plays at a time; its
// terminal event is always delivered from the playback goroutine, never
// from Play or Stop.
type opusSink struct {
	vc     *discordgo.VoiceConnection
	volume atomic.Int32

	mu     sync.Mutex
	active *playback
	closed bool
}

type playback struct {
	source ports.AudioSource
	onEnd  func(ports.EndReason)
	stop   chan struct{}
	once   sync.Once
	paused atomic.Bool
}

func newOpusSink(vc *discordgo.VoiceConnection) *opusSink {
	s := &opusSink{vc: vc}
	s.volume.Store(100)
	return s
}

func (s *opusSink) Play(source ports.AudioSource, volumePercent int, onEnd func(ports.EndReason)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("sink is closed")
	}
	if s.active != nil {
		return errors.New("sink already has an active source")
	}

	s.volume.Store(int32(volumePercent))
	p := &playback{
		source: source,
		onEnd:  onEnd,
		stop:   make(chan struct{}),
	}
	s.active = p

	go s.stream(p)
	return nil
}

func (s *opusSink) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return errors.New("no active source")
	}
	s.active.paused.Store(true)
	return nil
}

func (s *opusSink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return errors.New("no active source")
	}
	s.active.paused.Store(false)
	return nil
}

func (s *opusSink) Stop() bool {
	s.mu.Lock()
	p := s.active
	s.mu.Unlock()
	if p == nil {
		return false
	}
	p.once.Do(func() { close(p.stop) })
	return true
}

func (s *opusSink) SetVolume(percent int) {
	s.volume.Store(int32(percent))
}

func (s *opusSink) Close() {
	s.mu.Lock()
	p := s.active
	s.closed = true
	s.mu.Unlock()
	if p != nil {
		p.once.Do(func() { close(p.stop) })
	}
}

// stream runs on its own goroutine for the lifetime of one source.
func (s *opusSink) stream(p *playback) {
	reason := s.pump(p)

	p.source.Close()

	// Clear the active slot before delivering the event: the callback may
	// immediately start the next track on this sink.
	s.mu.Lock()
	if s.active == p {
		s.active = nil
	}
	s.mu.Unlock()

	p.onEnd(reason)
}

func (s *opusSink) pump(p *playback) ports.EndReason {
	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		slog.Error("failed to create opus encoder", "error", err)
		return ports.EndErrored
	}

	if err := s.vc.Speaking(true); err != nil {
		slog.Warn("failed to set speaking state", "error", err)
	}
	defer func() {
		if err := s.vc.Speaking(false); err != nil {
			slog.Warn("failed to clear speaking state", "error", err)
		}
	}()

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	for {
		select {
		case <-p.stop:
			return ports.EndStopped
		default:
		}

		if p.paused.Load() {
			select {
			case <-p.stop:
				return ports.EndStopped
			case <-time.After(20 * time.Millisecond):
			}
			continue
		}

		n, err := io.ReadFull(p.source, pcmBuf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			if errors.Is(err, io.EOF) {
				return ports.EndFinished
			}
			select {
			case <-p.stop:
				// Closing the source races the read; a stop was requested.
				return ports.EndStopped
			default:
			}
			slog.Error("audio source read failed", "error", err)
			return ports.EndErrored
		}
		// Zero-pad a short final frame.
		for i := n; i < len(pcmBuf); i++ {
			pcmBuf[i] = 0
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}
		scalePCM(intBuf, int(s.volume.Load()))

		opus, encErr := encoder.Encode(intBuf, frameSize, len(pcmBuf))
		if encErr != nil {
			slog.Error("opus encode failed", "error", encErr)
			return ports.EndErrored
		}

		select {
		case s.vc.OpusSend <- opus:
		case <-p.stop:
			return ports.EndStopped
		}

		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ports.EndFinished
		}
	}
}

// scalePCM applies a volume percentage in place, clamping at the int16
// range. 100 is unity.
func scalePCM(samples []int16, percent int) {
	if percent == 100 {
		return
	}
	for i, sample := range samples {
		scaled := int32(sample) * int32(percent) / 100
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		samples[i] = int16(scaled)
	}
}
