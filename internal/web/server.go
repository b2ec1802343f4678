package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/yuzuru-s/kanade/internal/modules/music/application"
	"github.com/yuzuru-s/kanade/internal/modules/music/application/ports"
	"github.com/yuzuru-s/kanade/internal/modules/music/domain"
)

// PlayerAPI is the playback surface the dashboard drives. The music
// module's PlayerService satisfies it.
type PlayerAPI interface {
	Join(ctx context.Context, input application.JoinInput) error
	Leave(guildID snowflake.ID) error
	Enqueue(ctx context.Context, input application.EnqueueInput) (*application.EnqueueOutput, error)
	EnqueueTrack(guildID snowflake.ID, track domain.Track, mode application.EnqueueMode) (*application.EnqueueOutput, error)
	EnqueuePlaylist(ctx context.Context, input application.EnqueuePlaylistInput) (*application.EnqueuePlaylistOutput, error)
	Skip(guildID snowflake.ID) error
	TogglePause(guildID snowflake.ID) (application.ToggleResult, error)
	PlayPrevious(guildID snowflake.ID) error
	SetLoop(guildID snowflake.ID, mode string) (domain.LoopMode, error)
	SetVolume(guildID snowflake.ID, level int) error
	SetSfxVolume(guildID snowflake.ID, level int) error
	PlaySfx(ctx context.Context, guildID snowflake.ID, effectID string) (*domain.Track, error)
	RemoveFromQueue(guildID snowflake.ID, index int) (*domain.Track, error)
	MoveToFront(guildID snowflake.ID, index int) error
	ClearQueue(guildID snowflake.ID) error
	ClearHistory(guildID snowflake.ID) error
	PlayFromQueueAt(guildID snowflake.ID, index int) error
	Status(guildID snowflake.ID) application.Status
}

// GuildInfo describes a guild the bot is a member of.
type GuildInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GuildLister enumerates the guilds visible to the bot's gateway session.
type GuildLister interface {
	Guilds() []GuildInfo
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg      *Config
	player   PlayerAPI
	library  ports.StorageLibrary
	guilds   GuildLister
	auth     *Authenticator
	upgrader websocket.Upgrader

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

// clientLimiter pairs a token bucket with the time it last served a
// request, so buckets for expired sessions can be evicted.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterTTL is how long an idle client's bucket is retained.
const limiterTTL = 30 * time.Minute

// NewServer creates the dashboard server.
func NewServer(cfg *Config, player PlayerAPI, library ports.StorageLibrary, guilds GuildLister, auth *Authenticator) *Server {
	return &Server{
		cfg:     cfg,
		player:  player,
		library: library,
		guilds:  guilds,
		auth:    auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		limiters: make(map[string]*clientLimiter),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)

	r.Get("/auth/login", s.auth.HandleLogin)
	r.Get("/auth/callback", s.auth.HandleCallback)
	r.Post("/auth/logout", s.auth.HandleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.RequireSession)
		r.Use(s.rateLimit)

		r.Get("/guilds", s.handleListGuilds)
		r.Get("/library", s.handleLibrary)

		r.Route("/guilds/{guildID}", func(r chi.Router) {
			r.Get("/player", s.handlePlayerStatus)
			r.Get("/player/ws", s.handlePlayerWS)
			r.Post("/player/join", s.handleJoin)
			r.Post("/player/leave", s.handleLeave)
			r.Post("/player/play", s.handlePlay)
			r.Post("/player/play-key", s.handlePlayKey)
			r.Post("/player/playlist", s.handlePlaylist)
			r.Post("/player/skip", s.handleSkip)
			r.Post("/player/pause", s.handlePause)
			r.Post("/player/previous", s.handlePrevious)
			r.Post("/player/stop", s.handleStop)
			r.Post("/player/loop", s.handleLoop)
			r.Post("/player/volume", s.handleVolume)
			r.Post("/player/sfx-volume", s.handleSfxVolume)
			r.Post("/player/sfx", s.handleSfx)
			r.Post("/queue/remove", s.handleQueueRemove)
			r.Post("/queue/move", s.handleQueueMove)
			r.Post("/queue/play-at", s.handleQueuePlayAt)
			r.Delete("/queue", s.handleQueueClear)
			r.Delete("/history", s.handleHistoryClear)
		})
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	slog.Info("dashboard listening", "addr", s.cfg.ListenAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// rateLimit enforces a per-client token bucket over the API routes. The
// session token identifies the client; buckets idle past limiterTTL are
// dropped so the map tracks only live sessions.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiterFor(bearerToken(r)).Allow() {
			respondError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limiterFor(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, c := range s.limiters {
		if now.Sub(c.lastSeen) > limiterTTL {
			delete(s.limiters, k)
		}
	}

	client, ok := s.limiters[key]
	if !ok {
		client = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst),
		}
		s.limiters[key] = client
	}
	client.lastSeen = now
	return client.limiter
}

// handlePlayerWS upgrades to a websocket and pushes the player snapshot
// whenever it changes, checking at a fixed cadence.
func (s *Server) handlePlayerWS(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildParam(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Reads are only serviced to detect the peer closing.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last []byte
	for {
		payload := statusPayload(s.player.Status(guildID))
		encoded, err := json.Marshal(payload)
		if err != nil {
			return
		}
		if string(encoded) != string(last) {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, encoded); err != nil {
				return
			}
			last = encoded
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
