package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/yuzuru-s/kanade/internal/bot"
	"github.com/yuzuru-s/kanade/internal/modules/music/application"
	"github.com/yuzuru-s/kanade/internal/modules/music/application/ports"
	"github.com/yuzuru-s/kanade/internal/modules/music/domain"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
)

// maxListedTracks caps how many queue/history entries one embed shows.
const maxListedTracks = 15

// CommandHandlers holds all the command handlers.
type CommandHandlers struct {
	player     *application.PlayerService
	voiceState ports.VoiceStateProvider
}

// NewCommandHandlers creates new CommandHandlers.
func NewCommandHandlers(player *application.PlayerService, voiceState ports.VoiceStateProvider) *CommandHandlers {
	return &CommandHandlers{
		player:     player,
		voiceState: voiceState,
	}
}

// HandleJoin handles the /join command.
func (h *CommandHandlers) HandleJoin(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	var voiceChannelID snowflake.ID
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "channel" {
			voiceChannelID, err = snowflake.Parse(opt.ChannelValue(s).ID)
			if err != nil {
				return respondError(r, "Invalid voice channel")
			}
		}
	}

	if voiceChannelID == 0 {
		voiceChannelID, err = h.invokerVoiceChannel(guildID, i)
		if err != nil {
			return respondError(r, err.Error())
		}
	}

	if err := h.player.Join(ctx, application.JoinInput{
		GuildID:        guildID,
		VoiceChannelID: voiceChannelID,
	}); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Connected to <#%d>.", voiceChannelID))
}

// HandleLeave handles the /leave command.
func (h *CommandHandlers) HandleLeave(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if err := h.player.Leave(guildID); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, "Disconnected.")
}

// HandlePlay handles the /play command.
func (h *CommandHandlers) HandlePlay(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	var query, modeStr string
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "query":
			query = opt.StringValue()
		case "mode":
			modeStr = opt.StringValue()
		}
	}

	mode, err := application.ParseEnqueueMode(modeStr)
	if err != nil {
		return respondError(r, "Invalid mode")
	}

	return h.enqueue(i, r, query, mode)
}

// HandlePlaySkip handles the /playskip command.
func (h *CommandHandlers) HandlePlaySkip(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	var query string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}

	return h.enqueue(i, r, query, application.ModeNow)
}

func (h *CommandHandlers) enqueue(
	i *discordgo.InteractionCreate,
	r bot.Responder,
	query string,
	mode application.EnqueueMode,
) error {
	ctx := context.Background()

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if err := h.ensureJoined(ctx, guildID, i); err != nil {
		return respondError(r, err.Error())
	}

	output, err := h.player.Enqueue(ctx, application.EnqueueInput{
		GuildID: guildID,
		Query:   query,
		Mode:    mode,
	})
	if err != nil {
		return respondError(r, err.Error())
	}

	if output.StartedNow {
		return respondSuccess(r, fmt.Sprintf("Now playing %s.", trackRef(output.Track)))
	}
	return respondSuccess(r, fmt.Sprintf(
		"Added %s to the queue at position %d.", trackRef(output.Track), output.Position,
	))
}

// HandlePlaylist handles the /playlist command.
func (h *CommandHandlers) HandlePlaylist(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	var url string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "url" {
			url = opt.StringValue()
		}
	}

	if err := h.ensureJoined(ctx, guildID, i); err != nil {
		return respondError(r, err.Error())
	}

	output, err := h.player.EnqueuePlaylist(ctx, application.EnqueuePlaylistInput{
		GuildID: guildID,
		URL:     url,
	})
	if err != nil {
		return respondError(r, err.Error())
	}

	if output.StartedNow {
		return respondSuccess(r, fmt.Sprintf(
			"Now playing %s; queued **%d** more tracks.", trackRef(*output.First), output.Queued,
		))
	}
	return respondSuccess(r, fmt.Sprintf("Queued **%d** tracks.", output.Queued))
}

// HandleSkip handles the /skip command.
func (h *CommandHandlers) HandleSkip(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if err := h.player.Skip(guildID); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, "Skipped.")
}

// HandlePause handles the /pause command. Pause and resume share the
// toggle, so running /pause on a paused player resumes it.
func (h *CommandHandlers) HandlePause(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.togglePause(i, r)
}

// HandleResume handles the /resume command.
func (h *CommandHandlers) HandleResume(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.togglePause(i, r)
}

func (h *CommandHandlers) togglePause(i *discordgo.InteractionCreate, r bot.Responder) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	result, err := h.player.TogglePause(guildID)
	if err != nil {
		return respondError(r, err.Error())
	}

	switch result {
	case application.TogglePaused:
		return respondSuccess(r, "Paused playback.")
	case application.ToggleResumed:
		return respondSuccess(r, "Resumed playback.")
	default:
		return respondError(r, "Nothing is currently playing.")
	}
}

// HandleStop handles the /stop command.
// Stop is a presentation concept: clear the queue, then skip the current track.
func (h *CommandHandlers) HandleStop(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if err := h.player.ClearQueue(guildID); err != nil {
		return respondError(r, err.Error())
	}
	if err := h.player.Skip(guildID); err != nil && !errors.Is(err, application.ErrNothingPlaying) {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, "Stopped playback.")
}

// HandlePrevious handles the /previous command.
func (h *CommandHandlers) HandlePrevious(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if err := h.player.PlayPrevious(guildID); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, "Replaying the previous track.")
}

// HandleQueue handles the /queue command.
func (h *CommandHandlers) HandleQueue(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return respondError(r, "Invalid subcommand")
	}

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	subCmd := options[0]
	switch subCmd.Name {
	case "list":
		return h.handleQueueList(guildID, r)
	case "remove":
		return h.handleQueueRemove(guildID, r, subCmd.Options)
	case "move":
		return h.handleQueueMove(guildID, r, subCmd.Options)
	case "jump":
		return h.handleQueueJump(guildID, r, subCmd.Options)
	case "clear":
		return h.handleQueueClear(guildID, r)
	default:
		return respondError(r, "Unknown subcommand")
	}
}

func (h *CommandHandlers) handleQueueList(guildID snowflake.ID, r bot.Responder) error {
	status := h.player.Status(guildID)
	if !status.Connected {
		return respondError(r, application.ErrNotConnected.Error())
	}

	title := "Queue"
	switch status.LoopMode {
	case domain.LoopModeTrack:
		title = "Queue \U0001F502" // 🔂
	case domain.LoopModeQueue:
		title = "Queue \U0001F501" // 🔁
	}

	var sb strings.Builder
	if status.NowPlaying != nil {
		sb.WriteString("### Now Playing\n")
		writeTrackLine(&sb, 0, *status.NowPlaying)
	}
	if len(status.Queue) > 0 {
		sb.WriteString("### Up Next\n")
		for idx, track := range status.Queue {
			if idx == maxListedTracks {
				fmt.Fprintf(&sb, "...and %d more.\n", len(status.Queue)-maxListedTracks)
				break
			}
			writeTrackLine(&sb, idx+1, track)
		}
	}
	if sb.Len() == 0 {
		sb.WriteString("Queue is empty.")
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       title,
					Description: sb.String(),
					Footer: &discordgo.MessageEmbedFooter{
						Text: fmt.Sprintf("%d queued | volume %d%%", len(status.Queue), status.Volume),
					},
				},
			},
		},
	})
}

func (h *CommandHandlers) handleQueueRemove(
	guildID snowflake.ID,
	r bot.Responder,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) error {
	index := positionOption(options) - 1
	removed, err := h.player.RemoveFromQueue(guildID, index)
	if err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Removed %s.", trackRef(*removed)))
}

func (h *CommandHandlers) handleQueueMove(
	guildID snowflake.ID,
	r bot.Responder,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) error {
	index := positionOption(options) - 1
	if err := h.player.MoveToFront(guildID, index); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Moved position %d to the front of the queue.", index+1))
}

func (h *CommandHandlers) handleQueueJump(
	guildID snowflake.ID,
	r bot.Responder,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) error {
	index := positionOption(options) - 1
	if err := h.player.PlayFromQueueAt(guildID, index); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Jumped to position %d.", index+1))
}

func (h *CommandHandlers) handleQueueClear(guildID snowflake.ID, r bot.Responder) error {
	if err := h.player.ClearQueue(guildID); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, "Cleared the queue.")
}

// HandleHistory handles the /history command.
func (h *CommandHandlers) HandleHistory(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return respondError(r, "Invalid subcommand")
	}

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	switch options[0].Name {
	case "list":
		return h.handleHistoryList(guildID, r)
	case "clear":
		if err := h.player.ClearHistory(guildID); err != nil {
			return respondError(r, err.Error())
		}
		return respondSuccess(r, "Cleared the play history.")
	default:
		return respondError(r, "Unknown subcommand")
	}
}

func (h *CommandHandlers) handleHistoryList(guildID snowflake.ID, r bot.Responder) error {
	status := h.player.Status(guildID)
	if !status.Connected {
		return respondError(r, application.ErrNotConnected.Error())
	}

	var sb strings.Builder
	for idx, track := range status.History {
		if idx == maxListedTracks {
			fmt.Fprintf(&sb, "...and %d more.\n", len(status.History)-maxListedTracks)
			break
		}
		writeTrackLine(&sb, idx+1, track)
	}
	if sb.Len() == 0 {
		sb.WriteString("Nothing has been played yet.")
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Recently Played",
					Description: sb.String(),
				},
			},
		},
	})
}

// HandleLoop handles the /loop command.
func (h *CommandHandlers) HandleLoop(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	var modeStr string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "mode" {
			modeStr = opt.StringValue()
		}
	}

	mode, err := h.player.SetLoop(guildID, modeStr)
	if err != nil {
		return respondError(r, err.Error())
	}

	var description string
	switch mode {
	case domain.LoopModeTrack:
		description = "Now looping the current track."
	case domain.LoopModeQueue:
		description = "Now looping the queue."
	default:
		description = "Loop disabled."
	}

	return respondSuccess(r, description)
}

// HandleVolume handles the /volume command.
func (h *CommandHandlers) HandleVolume(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.setVolume(i, r, h.player.SetVolume, "Volume")
}

// HandleSfxVolume handles the /sfx-volume command.
func (h *CommandHandlers) HandleSfxVolume(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.setVolume(i, r, h.player.SetSfxVolume, "Sound-effect volume")
}

func (h *CommandHandlers) setVolume(
	i *discordgo.InteractionCreate,
	r bot.Responder,
	set func(snowflake.ID, int) error,
	label string,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	var level int
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "level" {
			level = int(opt.IntValue())
		}
	}

	if err := set(guildID, level); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("%s set to %d%%.", label, level))
}

// HandleSfx handles the /sfx command.
func (h *CommandHandlers) HandleSfx(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	var effect string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "effect" {
			effect = opt.StringValue()
		}
	}

	if err := h.ensureJoined(ctx, guildID, i); err != nil {
		return respondError(r, err.Error())
	}

	track, err := h.player.PlaySfx(ctx, guildID, effect)
	if err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Playing **%s**.", track.Title))
}

// HandleStatus handles the /status command.
func (h *CommandHandlers) HandleStatus(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	status := h.player.Status(guildID)
	if !status.Connected {
		return respondError(r, application.ErrNotConnected.Error())
	}

	var sb strings.Builder
	if status.NowPlaying != nil {
		fmt.Fprintf(&sb, "**%s** (%s) - %s\n",
			status.NowPlaying.Title,
			status.NowPlaying.FormattedDuration(),
			status.Phase,
		)
	} else {
		sb.WriteString("Nothing is playing.\n")
	}
	fmt.Fprintf(&sb, "Queue: %d | History: %d\n", len(status.Queue), len(status.History))
	fmt.Fprintf(&sb, "Loop: %s | Volume: %d%% | Sfx volume: %d%%",
		status.LoopMode, status.Volume, status.SfxVolume)

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Player Status",
					Description: sb.String(),
				},
			},
		},
	})
}

// ensureJoined connects the bot to the invoking user's voice channel if no
// session exists for the guild yet.
func (h *CommandHandlers) ensureJoined(
	ctx context.Context,
	guildID snowflake.ID,
	i *discordgo.InteractionCreate,
) error {
	if h.player.Status(guildID).Connected {
		return nil
	}

	channelID, err := h.invokerVoiceChannel(guildID, i)
	if err != nil {
		return err
	}

	return h.player.Join(ctx, application.JoinInput{
		GuildID:        guildID,
		VoiceChannelID: channelID,
	})
}

func (h *CommandHandlers) invokerVoiceChannel(
	guildID snowflake.ID,
	i *discordgo.InteractionCreate,
) (snowflake.ID, error) {
	if i.Member == nil || i.Member.User == nil {
		return 0, errors.New("could not determine the invoking user")
	}

	userID, err := snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return 0, errors.New("invalid user")
	}

	channelID, err := h.voiceState.UserVoiceChannel(guildID, userID)
	if err != nil {
		return 0, err
	}
	if channelID == 0 {
		return 0, errors.New("you are not in a voice channel")
	}
	return channelID, nil
}

// Response helpers.

func respondSuccess(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: message,
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondError(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Error",
					Description: message,
					Color:       colorError,
				},
			},
		},
	})
}

// trackRef renders a track as a markdown link when it has a URL locator.
func trackRef(track domain.Track) string {
	if strings.HasPrefix(track.Locator, "http://") || strings.HasPrefix(track.Locator, "https://") {
		return fmt.Sprintf("[%s](%s)", track.Title, track.Locator)
	}
	return fmt.Sprintf("**%s**", track.Title)
}

// writeTrackLine writes a single track line to the string builder.
// Escapes the period to prevent Discord markdown list formatting.
func writeTrackLine(sb *strings.Builder, displayIndex int, track domain.Track) {
	if displayIndex == 0 {
		fmt.Fprintf(sb, "%s (%s) - %s\n", trackRef(track), track.FormattedDuration(), track.Artist)
		return
	}
	fmt.Fprintf(sb, "%d\\. %s (%s) - %s\n",
		displayIndex, trackRef(track), track.FormattedDuration(), track.Artist)
}

func positionOption(options []*discordgo.ApplicationCommandInteractionDataOption) int {
	for _, opt := range options {
		if opt.Name == "position" {
			return int(opt.IntValue())
		}
	}
	return 0
}
