package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/go-chi/chi/v5"

	"github.com/yuzuru-s/kanade/internal/modules/music/application"
	"github.com/yuzuru-s/kanade/internal/modules/music/application/ports"
	"github.com/yuzuru-s/kanade/internal/modules/music/domain"
)

type trackPayload struct {
	Title        string `json:"title"`
	Locator      string `json:"locator"`
	Artist       string `json:"artist,omitempty"`
	Album        string `json:"album,omitempty"`
	Duration     string `json:"duration"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

type playerPayload struct {
	GuildID    string         `json:"guildId"`
	Connected  bool           `json:"connected"`
	ChannelID  string         `json:"channelId,omitempty"`
	Phase      string         `json:"phase"`
	NowPlaying *trackPayload  `json:"nowPlaying,omitempty"`
	Queue      []trackPayload `json:"queue"`
	History    []trackPayload `json:"history"`
	LoopMode   string         `json:"loopMode"`
	Volume     int            `json:"volume"`
	SfxVolume  int            `json:"sfxVolume"`
}

type libraryEntryPayload struct {
	Key          string    `json:"key"`
	Filename     string    `json:"filename"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	Album        string    `json:"album,omitempty"`
	Duration     string    `json:"duration"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

func toTrackPayload(t domain.Track) trackPayload {
	return trackPayload{
		Title:        t.Title,
		Locator:      t.Locator,
		Artist:       t.Artist,
		Album:        t.Album,
		Duration:     t.FormattedDuration(),
		ThumbnailURL: t.ThumbnailURL,
	}
}

func toTrackPayloads(tracks []domain.Track) []trackPayload {
	payloads := make([]trackPayload, len(tracks))
	for i, t := range tracks {
		payloads[i] = toTrackPayload(t)
	}
	return payloads
}

func statusPayload(status application.Status) playerPayload {
	payload := playerPayload{
		GuildID:   status.GuildID.String(),
		Connected: status.Connected,
		Phase:     status.Phase.String(),
		Queue:     toTrackPayloads(status.Queue),
		History:   toTrackPayloads(status.History),
		LoopMode:  status.LoopMode.String(),
		Volume:    status.Volume,
		SfxVolume: status.SfxVolume,
	}
	if status.ChannelID != 0 {
		payload.ChannelID = status.ChannelID.String()
	}
	if status.NowPlaying != nil {
		track := toTrackPayload(*status.NowPlaying)
		payload.NowPlaying = &track
	}
	return payload
}

// guildParam parses the guildID route parameter, responding 400 on
// malformed IDs.
func guildParam(w http.ResponseWriter, r *http.Request) (snowflake.ID, bool) {
	id, err := snowflake.Parse(chi.URLParam(r, "guildID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_guild_id", "malformed guild ID")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "malformed JSON body")
		return false
	}
	return true
}

// mapServiceError translates the playback error taxonomy onto HTTP
// statuses. Unexpected errors become 500s.
func mapServiceError(w http.ResponseWriter, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, application.ErrNotConnected):
		status, code = http.StatusConflict, "not_connected"
	case errors.Is(err, application.ErrNothingPlaying):
		status, code = http.StatusConflict, "nothing_playing"
	case errors.Is(err, application.ErrNoHistory):
		status, code = http.StatusConflict, "no_history"
	case errors.Is(err, application.ErrTrackNotFound):
		status, code = http.StatusNotFound, "track_not_found"
	case errors.Is(err, application.ErrNoResults):
		status, code = http.StatusNotFound, "no_results"
	case errors.Is(err, application.ErrVolumeOutOfRange):
		status, code = http.StatusBadRequest, "volume_out_of_range"
	case errors.Is(err, application.ErrInvalidLoopMode):
		status, code = http.StatusBadRequest, "invalid_loop_mode"
	case errors.Is(err, application.ErrResolveFailed):
		status, code = http.StatusBadGateway, "resolve_failed"
	case errors.Is(err, application.ErrJoinFailed):
		status, code = http.StatusBadGateway, "join_failed"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
	}

	respondError(w, status, code, err.Error())
}

func (s *Server) handleListGuilds(w http.ResponseWriter, _ *http.Request) {
	guilds := s.guilds.Guilds()
	if guilds == nil {
		guilds = []GuildInfo{}
	}
	respondJSON(w, http.StatusOK, guilds)
}

func (s *Server) handlePlayerStatus(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, statusPayload(s.player.Status(guildID)))
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}

	var body struct {
		ChannelID string `json:"channelId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	channelID, err := snowflake.Parse(body.ChannelID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_channel_id", "malformed channel ID")
		return
	}

	if err := s.player.Join(r.Context(), application.JoinInput{
		GuildID:        guildID,
		VoiceChannelID: channelID,
	}); err != nil {
		mapServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "joined"})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}
	if err := s.player.Leave(guildID); err != nil {
		mapServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "left"})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}

	var body struct {
		Query string `json:"query"`
		Mode  string `json:"mode"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	mode, err := application.ParseEnqueueMode(body.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_mode", "mode must be queue, next, or now")
		return
	}

	out, err := s.player.Enqueue(r.Context(), application.EnqueueInput{
		GuildID: guildID,
		Query:   body.Query,
		Mode:    mode,
	})
	if err != nil {
		mapServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"track":      toTrackPayload(out.Track),
		"position":   out.Position,
		"startedNow": out.StartedNow,
	})
}

// handlePlayKey enqueues a library entry by its storage key, skipping the
// query resolver entirely.
func (s *Server) handlePlayKey(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}

	var body struct {
		Key  string `json:"key"`
		Mode string `json:"mode"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	mode, err := application.ParseEnqueueMode(body.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_mode", "mode must be queue, next, or now")
		return
	}

	track, err := s.library.TrackForKey(r.Context(), body.Key)
	if err != nil {
		mapServiceError(w, err)
		return
	}

	out, err := s.player.EnqueueTrack(guildID, track, mode)
	if err != nil {
		mapServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"track":      toTrackPayload(out.Track),
		"position":   out.Position,
		"startedNow": out.StartedNow,
	})
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}

	var body struct {
		URL string `json:"url"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	out, err := s.player.EnqueuePlaylist(r.Context(), application.EnqueuePlaylistInput{
		GuildID: guildID,
		URL:     body.URL,
	})
	if err != nil {
		mapServiceError(w, err)
		return
	}

	resp := map[string]any{
		"queued":     out.Queued,
		"startedNow": out.StartedNow,
	}
	if out.First != nil {
		resp["first"] = toTrackPayload(*out.First)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}
	if err := s.player.Skip(guildID); err != nil {
		mapServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "skipped"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}

	result, err := s.player.TogglePause(guildID)
	if err != nil {
		mapServiceError(w, err)
		return
	}

	var state string
	switch result {
	case application.TogglePaused:
		state = "paused"
	case application.ToggleResumed:
		state = "resumed"
	default:
		mapServiceError(w, application.ErrNothingPlaying)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": state})
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}
	if err := s.player.PlayPrevious(guildID); err != nil {
		mapServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "previous"})
}

// handleStop clears the queue and terminates the current track, leaving
// the session connected but idle.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}
	if err := s.player.ClearQueue(guildID); err != nil {
		mapServiceError(w, err)
		return
	}
	if err := s.player.Skip(guildID); err != nil && !errors.Is(err, application.ErrNothingPlaying) {
		mapServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "stopped"})
}

func (s *Server) handleLoop(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}

	var body struct {
		Mode string `json:"mode"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	mode, err := s.player.SetLoop(guildID, body.Mode)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"loopMode": mode.String()})
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	s.setVolume(w, r, s.player.SetVolume)
}

func (s *Server) handleSfxVolume(w http.ResponseWriter, r *http.Request) {
	s.setVolume(w, r, s.player.SetSfxVolume)
}

func (s *Server) setVolume(w http.ResponseWriter, r *http.Request, set func(snowflake.ID, int) error) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}

	var body struct {
		Level int `json:"level"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := set(guildID, body.Level); err != nil {
		mapServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"level": body.Level})
}

func (s *Server) handleSfx(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}

	var body struct {
		Effect string `json:"effect"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	track, err := s.player.PlaySfx(r.Context(), guildID, body.Effect)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"track": toTrackPayload(*track)})
}

func (s *Server) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}

	var body struct {
		Index int `json:"index"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	track, err := s.player.RemoveFromQueue(guildID, body.Index)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"removed": toTrackPayload(*track)})
}

func (s *Server) handleQueueMove(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}

	var body struct {
		Index int `json:"index"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := s.player.MoveToFront(guildID, body.Index); err != nil {
		mapServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "moved"})
}

func (s *Server) handleQueuePlayAt(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}

	var body struct {
		Index int `json:"index"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := s.player.PlayFromQueueAt(guildID, body.Index); err != nil {
		mapServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "playing"})
}

func (s *Server) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}
	if err := s.player.ClearQueue(guildID); err != nil {
		mapServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}
	if err := s.player.ClearHistory(guildID); err != nil {
		mapServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := s.library.ListTracks(r.Context(), ports.LibraryQuery{
		Search: q.Get("search"),
		Artist: q.Get("artist"),
		Album:  q.Get("album"),
		Sort:   q.Get("sort"),
		Order:  q.Get("order"),
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, "library_unavailable", "failed to list the library")
		return
	}

	payloads := make([]libraryEntryPayload, len(entries))
	for i, e := range entries {
		track := domain.Track{Duration: e.Duration}
		payloads[i] = libraryEntryPayload{
			Key:          e.Key,
			Filename:     e.Filename,
			Title:        e.Title,
			Artist:       e.Artist,
			Album:        e.Album,
			Duration:     track.FormattedDuration(),
			Size:         e.Size,
			LastModified: e.LastModified,
		}
	}
	respondJSON(w, http.StatusOK, payloads)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
