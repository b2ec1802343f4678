package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/yuzuru-s/kanade/internal/bot"
	_ "github.com/yuzuru-s/kanade/internal/modules/diagnostics"
	"github.com/yuzuru-s/kanade/internal/modules/music"
	"github.com/yuzuru-s/kanade/internal/web"
)

// version is set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0" ./cmd/kanade
var version = "dev"

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	// Configure JSON logging
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	slog.Info("starting kanade", "version", version)

	// Load configuration
	cfg, err := bot.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	webCfg, err := web.LoadConfig()
	if err != nil {
		slog.Error("failed to load dashboard config", "error", err)
		os.Exit(1)
	}

	// Create and configure bot
	b := bot.NewBot(cfg)
	b.LoadModules()

	// Start bot
	if err := b.Start(); err != nil {
		slog.Error("failed to start bot", "error", err)
		os.Exit(1)
	}

	// Start the dashboard, backed by the music module's playback service
	webCtx, stopWeb := context.WithCancel(context.Background())
	webDone := make(chan struct{})
	if webCfg.Enabled {
		musicModule, ok := b.Module("music").(*music.MusicModule)
		if !ok {
			slog.Error("dashboard enabled but music module is not loaded")
			os.Exit(1)
		}

		auth := web.NewAuthenticator(webCfg, sessionRoles{b.Session()})
		server := web.NewServer(webCfg, musicModule.Player(), musicModule.Library(), sessionGuilds{b.Session()}, auth)

		go func() {
			defer close(webDone)
			if err := server.ListenAndServe(webCtx); err != nil {
				slog.Error("dashboard server failed", "error", err)
			}
		}()
	} else {
		close(webDone)
	}

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("received termination signal, shutting down")
	stopWeb()
	<-webDone
	if err := b.Stop(); err != nil {
		slog.Error("failed to shutdown", "error", err)
	}

	slog.Info("completed bot shutdown")
	os.Exit(0)
}

// sessionRoles looks up guild member roles through the gateway session,
// hitting the REST API when the member is not cached.
type sessionRoles struct {
	session *discordgo.Session
}

func (s sessionRoles) MemberRoles(guildID, userID string) ([]string, error) {
	if member, err := s.session.State.Member(guildID, userID); err == nil {
		return member.Roles, nil
	}
	member, err := s.session.GuildMember(guildID, userID)
	if err != nil {
		return nil, err
	}
	return member.Roles, nil
}

// sessionGuilds lists the guilds the bot is a member of from the state
// cache.
type sessionGuilds struct {
	session *discordgo.Session
}

func (s sessionGuilds) Guilds() []web.GuildInfo {
	s.session.State.RLock()
	defer s.session.State.RUnlock()

	guilds := make([]web.GuildInfo, 0, len(s.session.State.Guilds))
	for _, g := range s.session.State.Guilds {
		guilds = append(guilds, web.GuildInfo{ID: g.ID, Name: g.Name})
	}
	return guilds
}
