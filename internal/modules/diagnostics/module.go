package diagnostics

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/yuzuru-s/kanade/internal/bot"
)

func init() {
	bot.Register(&DiagnosticsModule{})
}

// DiagnosticsModule provides a liveness command reporting gateway latency
// and process uptime.
type DiagnosticsModule struct {
	startedAt time.Time
}

// Name returns the module name.
func (m *DiagnosticsModule) Name() string {
	return "diagnostics"
}

// Commands returns the slash commands for this module.
func (m *DiagnosticsModule) Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "ping",
			Description: "Check whether the bot is responsive",
		},
	}
}

// CommandHandlers returns the command handlers for this module.
func (m *DiagnosticsModule) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"ping": m.HandlePing,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *DiagnosticsModule) EventHandlers() []bot.EventHandler {
	return nil
}

// Init initializes the module.
func (m *DiagnosticsModule) Init(_ bot.ModuleDependencies) error {
	m.startedAt = time.Now()
	return nil
}

// Shutdown cleans up module resources.
func (m *DiagnosticsModule) Shutdown() error {
	return nil
}

// HandlePing responds with the gateway heartbeat latency and uptime.
func (m *DiagnosticsModule) HandlePing(
	s *discordgo.Session,
	_ *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: pingMessage(s.HeartbeatLatency(), time.Since(m.startedAt)),
		},
	})
}

func pingMessage(latency, uptime time.Duration) string {
	return fmt.Sprintf("Pong! Gateway latency: %dms, uptime: %s.",
		latency.Milliseconds(),
		uptime.Round(time.Second),
	)
}
