package music

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/yuzuru-s/kanade/internal/bot"
	"github.com/yuzuru-s/kanade/internal/modules/music/application"
	"github.com/yuzuru-s/kanade/internal/modules/music/application/ports"
	"github.com/yuzuru-s/kanade/internal/modules/music/infrastructure"
	"github.com/yuzuru-s/kanade/internal/modules/music/presentation"
	"github.com/yuzuru-s/kanade/internal/modules/music/presentation/discord"
)

func init() {
	bot.Register(&MusicModule{})
}

// Compile-time interface checks.
var _ bot.ConfigurableModule = (*MusicModule)(nil)

// MusicModule provides voice-channel music playback: queue management,
// yt-dlp resolution, the object-storage library, and the soundboard.
type MusicModule struct {
	config          *Config
	registry        *application.Registry
	player          *application.PlayerService
	library         ports.StorageLibrary
	commandHandlers *discord.CommandHandlers
}

// Name returns the module name.
func (m *MusicModule) Name() string {
	return "music"
}

// Commands returns the slash commands for this module.
func (m *MusicModule) Commands() []*discordgo.ApplicationCommand {
	return presentation.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *MusicModule) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"join":       m.commandHandlers.HandleJoin,
		"leave":      m.commandHandlers.HandleLeave,
		"play":       m.commandHandlers.HandlePlay,
		"playskip":   m.commandHandlers.HandlePlaySkip,
		"playlist":   m.commandHandlers.HandlePlaylist,
		"skip":       m.commandHandlers.HandleSkip,
		"pause":      m.commandHandlers.HandlePause,
		"resume":     m.commandHandlers.HandleResume,
		"stop":       m.commandHandlers.HandleStop,
		"previous":   m.commandHandlers.HandlePrevious,
		"queue":      m.commandHandlers.HandleQueue,
		"history":    m.commandHandlers.HandleHistory,
		"loop":       m.commandHandlers.HandleLoop,
		"volume":     m.commandHandlers.HandleVolume,
		"sfx-volume": m.commandHandlers.HandleSfxVolume,
		"sfx":        m.commandHandlers.HandleSfx,
		"status":     m.commandHandlers.HandleStatus,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *MusicModule) EventHandlers() []bot.EventHandler {
	return nil
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *MusicModule) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module.
func (m *MusicModule) Init(deps bot.ModuleDependencies) error {
	storageClient, err := minio.New(m.config.StorageEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(m.config.StorageAccessKey, m.config.StorageSecretKey, ""),
		Secure: m.config.StorageUseSSL,
	})
	if err != nil {
		return err
	}

	storage := infrastructure.NewStorageResolver(
		storageClient,
		m.config.StorageBucket,
		m.config.StoragePrefix,
		m.config.SfxPrefix,
	)
	resolver := infrastructure.NewYtdlpResolver(m.config.YtdlpPath, m.config.FfmpegPath)
	transport := infrastructure.NewDiscordVoiceTransport(deps.Session)
	voiceState := infrastructure.NewVoiceStateProvider(deps.Session)

	m.registry = application.NewRegistry(transport, resolver, m.config.IdleTimeout)
	m.player = application.NewPlayerService(m.registry, resolver, storage)
	m.library = storage
	m.commandHandlers = discord.NewCommandHandlers(m.player, voiceState)

	slog.Info("music module initialized",
		"storage_endpoint", m.config.StorageEndpoint,
		"storage_bucket", m.config.StorageBucket,
		"idle_timeout", m.config.IdleTimeout,
	)

	return nil
}

// Shutdown disconnects all active voice sessions.
func (m *MusicModule) Shutdown() error {
	if m.registry != nil {
		m.registry.Close()
	}
	return nil
}

// Player exposes the playback operation surface for the dashboard API.
// It is nil before Init.
func (m *MusicModule) Player() *application.PlayerService {
	return m.player
}

// Library exposes the object-storage track library for the dashboard API.
// It is nil before Init.
func (m *MusicModule) Library() ports.StorageLibrary {
	return m.library
}
