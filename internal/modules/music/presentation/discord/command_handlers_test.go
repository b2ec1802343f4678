package discord

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/yuzuru-s/kanade/internal/bot"
	"github.com/yuzuru-s/kanade/internal/modules/music/application"
	"github.com/yuzuru-s/kanade/internal/modules/music/application/ports"
	"github.com/yuzuru-s/kanade/internal/modules/music/domain"
)

// fakeSource is a test double for ports.AudioSource
type fakeSource struct{}

func (fakeSource) Read([]byte) (int, error) { return 0, io.EOF }
func (fakeSource) Close() error             { return nil }

// fakeSink is a test double for ports.PlayerHandle
type fakeSink struct {
	onEnd func(ports.EndReason)
}

func (f *fakeSink) Play(_ ports.AudioSource, _ int, onEnd func(ports.EndReason)) error {
	f.onEnd = onEnd
	return nil
}

func (f *fakeSink) Pause() error  { return nil }
func (f *fakeSink) Resume() error { return nil }

func (f *fakeSink) Stop() bool {
	if f.onEnd == nil {
		return false
	}
	onEnd := f.onEnd
	f.onEnd = nil
	go onEnd(ports.EndStopped)
	return true
}

func (f *fakeSink) SetVolume(int) {}
func (f *fakeSink) Close()        {}

// fakeConnection is a test double for ports.ConnectionHandle
type fakeConnection struct {
	channelID snowflake.ID
}

func (f *fakeConnection) AttachSink() ports.PlayerHandle { return &fakeSink{} }
func (f *fakeConnection) ChannelID() snowflake.ID        { return f.channelID }
func (f *fakeConnection) Disconnect() error              { return nil }

// fakeTransport is a test double for ports.VoiceTransport
type fakeTransport struct {
	connects int
}

func (f *fakeTransport) Connect(_ context.Context, _, channelID snowflake.ID) (ports.ConnectionHandle, error) {
	f.connects++
	return &fakeConnection{channelID: channelID}, nil
}

// fakeResolver is a test double for ports.TrackResolver and
// ports.SoundEffectResolver
type fakeResolver struct{}

func (fakeResolver) ResolveOne(_ context.Context, query string) (domain.Track, error) {
	return domain.NewTrack(query, "https://example.com/"+query, nil, "Artist", domain.SourceKindStream), nil
}

func (fakeResolver) Search(context.Context, string, int) ([]domain.Track, error) {
	return nil, nil
}

func (fakeResolver) ResolvePlaylist(_ context.Context, _ string) ([]domain.Track, error) {
	return []domain.Track{
		domain.NewTrack("One", "https://example.com/1", nil, "", domain.SourceKindStream),
		domain.NewTrack("Two", "https://example.com/2", nil, "", domain.SourceKindStream),
	}, nil
}

func (fakeResolver) OpenAudioSource(context.Context, domain.Track) (ports.AudioSource, error) {
	return fakeSource{}, nil
}

func (fakeResolver) ResolveEffect(_ context.Context, effectID string) (domain.Track, error) {
	return domain.NewTrack("Sound Effect: "+effectID, "sfx/"+effectID, nil, "", domain.SourceKindSoundEffect), nil
}

// fakeVoiceState is a test double for ports.VoiceStateProvider
type fakeVoiceState struct {
	channelID snowflake.ID
}

func (f *fakeVoiceState) UserVoiceChannel(_, _ snowflake.ID) (snowflake.ID, error) {
	return f.channelID, nil
}

func newTestHandlers(userChannel snowflake.ID) (*CommandHandlers, *fakeTransport) {
	transport := &fakeTransport{}
	resolver := fakeResolver{}
	registry := application.NewRegistry(transport, resolver, 0)
	player := application.NewPlayerService(registry, resolver, resolver)
	return NewCommandHandlers(player, &fakeVoiceState{channelID: userChannel}), transport
}

func commandInteraction(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "100",
			Member: &discordgo.Member{
				User: &discordgo.User{ID: "7"},
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: options,
			},
		},
	}
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func intOption(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: float64(value),
	}
}

func embedDescription(t *testing.T, r *bot.MockResponder) string {
	t.Helper()
	if r.LastResponse == nil || len(r.LastResponse.Data.Embeds) == 0 {
		t.Fatal("expected an embed response")
	}
	return r.LastResponse.Data.Embeds[0].Description
}

func embedColor(t *testing.T, r *bot.MockResponder) int {
	t.Helper()
	if r.LastResponse == nil || len(r.LastResponse.Data.Embeds) == 0 {
		t.Fatal("expected an embed response")
	}
	return r.LastResponse.Data.Embeds[0].Color
}

func TestHandleJoin_UsesInvokerChannel(t *testing.T) {
	handlers, transport := newTestHandlers(200)
	responder := &bot.MockResponder{}

	if err := handlers.HandleJoin(nil, commandInteraction("join"), responder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if transport.connects != 1 {
		t.Errorf("expected 1 voice connection, got %d", transport.connects)
	}
	if got := embedDescription(t, responder); !strings.Contains(got, "Connected") {
		t.Errorf("unexpected response: %q", got)
	}
}

func TestHandleJoin_InvokerNotInVoiceChannel(t *testing.T) {
	handlers, transport := newTestHandlers(0)
	responder := &bot.MockResponder{}

	if err := handlers.HandleJoin(nil, commandInteraction("join"), responder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if transport.connects != 0 {
		t.Error("expected no voice connection")
	}
	if embedColor(t, responder) != colorError {
		t.Error("expected an error embed")
	}
}

func TestHandlePlay_AutoJoinsAndStarts(t *testing.T) {
	handlers, transport := newTestHandlers(200)
	responder := &bot.MockResponder{}

	interaction := commandInteraction("play", stringOption("query", "some song"))
	if err := handlers.HandlePlay(nil, interaction, responder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if transport.connects != 1 {
		t.Errorf("expected auto-join to connect once, got %d", transport.connects)
	}
	if got := embedDescription(t, responder); !strings.Contains(got, "Now playing") {
		t.Errorf("expected now-playing response, got %q", got)
	}
}

func TestHandlePlay_ReportsQueuePosition(t *testing.T) {
	handlers, _ := newTestHandlers(200)

	first := &bot.MockResponder{}
	if err := handlers.HandlePlay(nil, commandInteraction("play", stringOption("query", "first")), first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := &bot.MockResponder{}
	if err := handlers.HandlePlay(nil, commandInteraction("play", stringOption("query", "second")), second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := embedDescription(t, second); !strings.Contains(got, "position 1") {
		t.Errorf("expected queue position 1, got %q", got)
	}
}

func TestHandlePlay_InvalidMode(t *testing.T) {
	handlers, _ := newTestHandlers(200)
	responder := &bot.MockResponder{}

	interaction := commandInteraction("play",
		stringOption("query", "x"),
		stringOption("mode", "shuffle"),
	)
	if err := handlers.HandlePlay(nil, interaction, responder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if embedColor(t, responder) != colorError {
		t.Error("expected an error embed for unknown mode")
	}
}

func TestHandleSkip_WithoutSession(t *testing.T) {
	handlers, _ := newTestHandlers(200)
	responder := &bot.MockResponder{}

	if err := handlers.HandleSkip(nil, commandInteraction("skip"), responder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if embedColor(t, responder) != colorError {
		t.Error("expected an error embed when no session exists")
	}
}

func TestHandleVolume_OutOfRange(t *testing.T) {
	handlers, _ := newTestHandlers(200)

	join := &bot.MockResponder{}
	if err := handlers.HandleJoin(nil, commandInteraction("join"), join); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	responder := &bot.MockResponder{}
	interaction := commandInteraction("volume", intOption("level", 500))
	if err := handlers.HandleVolume(nil, interaction, responder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if embedColor(t, responder) != colorError {
		t.Error("expected an error embed for out-of-range volume")
	}
}

func TestHandleLoop_SetsMode(t *testing.T) {
	handlers, _ := newTestHandlers(200)

	join := &bot.MockResponder{}
	if err := handlers.HandleJoin(nil, commandInteraction("join"), join); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	responder := &bot.MockResponder{}
	interaction := commandInteraction("loop", stringOption("mode", "queue"))
	if err := handlers.HandleLoop(nil, interaction, responder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := embedDescription(t, responder); !strings.Contains(got, "looping the queue") {
		t.Errorf("unexpected response: %q", got)
	}
}

func TestHandleQueue_ListEmpty(t *testing.T) {
	handlers, _ := newTestHandlers(200)

	join := &bot.MockResponder{}
	if err := handlers.HandleJoin(nil, commandInteraction("join"), join); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	responder := &bot.MockResponder{}
	interaction := commandInteraction("queue", &discordgo.ApplicationCommandInteractionDataOption{
		Name: "list",
		Type: discordgo.ApplicationCommandOptionSubCommand,
	})
	if err := handlers.HandleQueue(nil, interaction, responder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := embedDescription(t, responder); !strings.Contains(got, "Queue is empty") {
		t.Errorf("unexpected response: %q", got)
	}
}

func TestHandleStatus_NotConnected(t *testing.T) {
	handlers, _ := newTestHandlers(200)
	responder := &bot.MockResponder{}

	if err := handlers.HandleStatus(nil, commandInteraction("status"), responder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if embedColor(t, responder) != colorError {
		t.Error("expected an error embed when not connected")
	}
}

func TestTrackRef(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    string
	}{
		{"url locator", "https://example.com/v", "[Song](https://example.com/v)"},
		{"storage locator", "music/song.mp3", "**Song**"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track := domain.NewTrack("Song", tt.locator, nil, "", domain.SourceKindStream)
			if got := trackRef(track); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestWriteTrackLine_EscapesListNumbering(t *testing.T) {
	var sb strings.Builder
	track := domain.NewTrack("Song", "music/s.mp3", domain.DurationSeconds(61), "Artist", domain.SourceKindObjectStorage)
	writeTrackLine(&sb, 3, track)

	want := fmt.Sprintf("3\\. %s (01:01) - Artist\n", "**Song**")
	if sb.String() != want {
		t.Errorf("expected %q, got %q", want, sb.String())
	}
}
