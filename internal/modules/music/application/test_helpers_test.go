package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/yuzuru-s/kanade/internal/modules/music/application/ports"
	"github.com/yuzuru-s/kanade/internal/modules/music/domain"
)

const waitTimeout = 2 * time.Second

func mockTrack(title string) domain.Track {
	return domain.Track{
		Title:   title,
		Locator: "https://example.com/" + title,
		Kind:    domain.SourceKindStream,
	}
}

func mockSfxTrack(title string) domain.Track {
	return domain.Track{
		Title:   title,
		Locator: "sfx/" + title,
		Kind:    domain.SourceKindSoundEffect,
	}
}

type mockSource struct {
	mu     sync.Mutex
	closed bool
}

func (m *mockSource) Read(_ []byte) (int, error) {
	return 0, errors.New("not readable in tests")
}

func (m *mockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// mockPlayer is a sink that records calls and lets the test deliver
// terminal events explicitly. Events are always delivered from a separate
// goroutine, matching the PlayerHandle contract.
type mockPlayer struct {
	mu         sync.Mutex
	onEnd      func(ports.EndReason)
	playErr    error
	plays      []int // volume of each Play call
	setVolumes []int
	pauses     int
	resumes    int
	closed     bool

	// played receives one signal per successful Play call.
	played chan struct{}
}

func newMockPlayer() *mockPlayer {
	return &mockPlayer{played: make(chan struct{}, 16)}
}

func (m *mockPlayer) Play(_ ports.AudioSource, volumePercent int, onEnd func(ports.EndReason)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	m.plays = append(m.plays, volumePercent)
	m.onEnd = onEnd
	m.played <- struct{}{}
	return nil
}

func (m *mockPlayer) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	return nil
}

func (m *mockPlayer) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes++
	return nil
}

func (m *mockPlayer) Stop() bool {
	m.mu.Lock()
	onEnd := m.onEnd
	m.onEnd = nil
	m.mu.Unlock()
	if onEnd == nil {
		return false
	}
	go onEnd(ports.EndStopped)
	return true
}

func (m *mockPlayer) SetVolume(percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setVolumes = append(m.setVolumes, percent)
}

func (m *mockPlayer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.onEnd = nil
}

// finish delivers a natural end-of-stream event for the active source.
func (m *mockPlayer) finish(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	onEnd := m.onEnd
	m.onEnd = nil
	m.mu.Unlock()
	if onEnd == nil {
		t.Fatal("finish called with no active source")
	}
	done := make(chan struct{})
	go func() {
		onEnd(ports.EndFinished)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("timed out delivering end-of-stream event")
	}
}

// waitPlay blocks until the sink receives its next Play call.
func (m *mockPlayer) waitPlay(t *testing.T) {
	t.Helper()
	select {
	case <-m.played:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for playback to start")
	}
}

func (m *mockPlayer) playCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.plays)
}

type mockConn struct {
	mu           sync.Mutex
	player       *mockPlayer
	channelID    snowflake.ID
	disconnects  int
	disconnected chan struct{}
}

func newMockConn(channelID snowflake.ID) *mockConn {
	return &mockConn{
		player:       newMockPlayer(),
		channelID:    channelID,
		disconnected: make(chan struct{}, 1),
	}
}

func (m *mockConn) AttachSink() ports.PlayerHandle { return m.player }

func (m *mockConn) ChannelID() snowflake.ID { return m.channelID }

func (m *mockConn) Disconnect() error {
	m.mu.Lock()
	m.disconnects++
	m.mu.Unlock()
	select {
	case m.disconnected <- struct{}{}:
	default:
	}
	return nil
}

type mockTransport struct {
	mu         sync.Mutex
	connectErr error
	conns      []*mockConn
}

func (m *mockTransport) Connect(_ context.Context, _, channelID snowflake.ID) (ports.ConnectionHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	conn := newMockConn(channelID)
	m.conns = append(m.conns, conn)
	return conn, nil
}

type mockResolver struct {
	mu         sync.Mutex
	resolveErr error
	tracks     map[string]domain.Track
	playlist   []domain.Track
	// openErrs maps track titles to source-acquisition failures.
	openErrs map[string]error
	opened   []*mockSource
	openCtxs []context.Context
}

func (m *mockResolver) openContexts() []context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]context.Context(nil), m.openCtxs...)
}

func newMockResolver() *mockResolver {
	return &mockResolver{
		tracks:   make(map[string]domain.Track),
		openErrs: make(map[string]error),
	}
}

func (m *mockResolver) ResolveOne(_ context.Context, query string) (domain.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolveErr != nil {
		return domain.Track{}, m.resolveErr
	}
	if track, ok := m.tracks[query]; ok {
		return track, nil
	}
	return mockTrack(query), nil
}

func (m *mockResolver) Search(_ context.Context, query string, limit int) ([]domain.Track, error) {
	results := make([]domain.Track, 0, limit)
	for i := 0; i < limit; i++ {
		results = append(results, mockTrack(fmt.Sprintf("%s-%d", query, i)))
	}
	return results, nil
}

func (m *mockResolver) ResolvePlaylist(_ context.Context, _ string) ([]domain.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	return m.playlist, nil
}

func (m *mockResolver) OpenAudioSource(ctx context.Context, track domain.Track) (ports.AudioSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openCtxs = append(m.openCtxs, ctx)
	if err, ok := m.openErrs[track.Title]; ok {
		return nil, err
	}
	source := &mockSource{}
	m.opened = append(m.opened, source)
	return source, nil
}

type mockEffectResolver struct {
	effects map[string]domain.Track
}

func (m *mockEffectResolver) ResolveEffect(_ context.Context, effectID string) (domain.Track, error) {
	if track, ok := m.effects[effectID]; ok {
		return track, nil
	}
	return domain.Track{}, ErrNoResults
}

// newTestSession wires a session to fresh mocks with the idle timer
// disabled. Tests that exercise the idle window pass their own timeout.
func newTestSession(idleTimeout time.Duration, onIdle func()) (*Session, *mockPlayer, *mockResolver) {
	conn := newMockConn(snowflake.ID(200))
	resolver := newMockResolver()
	session := newSession(snowflake.ID(100), conn, conn.player, resolver, idleTimeout, onIdle)
	return session, conn.player, resolver
}

// waitStatus polls until the predicate holds for the session snapshot.
func waitStatus(t *testing.T, session *Session, desc string, pred func(Status) bool) Status {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		status := session.Status()
		if pred(status) {
			return status
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; status: phase=%s now=%v queue=%d",
				desc, status.Phase, status.NowPlaying, len(status.Queue))
		}
		time.Sleep(2 * time.Millisecond)
	}
}
