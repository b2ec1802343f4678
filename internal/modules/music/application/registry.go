package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/yuzuru-s/kanade/internal/modules/music/application/ports"
)

// DefaultIdleTimeout is how long a drained session stays connected before
// auto-disconnecting.
const DefaultIdleTimeout = 30 * time.Second

// JoinContext carries what the registry needs to establish a voice
// connection for a new session.
type JoinContext struct {
	ChannelID snowflake.ID
}

// Registry is the single authoritative mapping from guild to Session.
// Creation and teardown for the same guild are serialized through a
// per-guild entry lock; different guilds never contend with each other
// beyond the map itself.
type Registry struct {
	transport   ports.VoiceTransport
	resolver    ports.TrackResolver
	idleTimeout time.Duration

	mu      sync.Mutex
	entries map[snowflake.ID]*registryEntry
}

type registryEntry struct {
	mu      sync.Mutex
	session *Session
}

// NewRegistry creates a new Registry. An idleTimeout of zero disables
// auto-disconnect.
func NewRegistry(transport ports.VoiceTransport, resolver ports.TrackResolver, idleTimeout time.Duration) *Registry {
	return &Registry{
		transport:   transport,
		resolver:    resolver,
		idleTimeout: idleTimeout,
		entries:     make(map[snowflake.ID]*registryEntry),
	}
}

// GetOrCreate returns the guild's session, establishing the voice
// connection and creating the session if none exists. Joining a guild
// that already has a session is a no-op returning the existing session,
// regardless of the requested channel. On connection failure no partial
// session is left behind.
func (r *Registry) GetOrCreate(ctx context.Context, guildID snowflake.ID, join JoinContext) (*Session, error) {
	r.mu.Lock()
	entry, ok := r.entries[guildID]
	if !ok {
		entry = &registryEntry{}
		r.entries[guildID] = entry
	}
	r.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.session != nil {
		return entry.session, nil
	}

	conn, err := r.transport.Connect(ctx, guildID, join.ChannelID)
	if err != nil {
		r.dropEmptyEntry(guildID, entry)
		return nil, fmt.Errorf("%w: %v", ErrJoinFailed, err)
	}

	session := newSession(
		guildID,
		conn,
		conn.AttachSink(),
		r.resolver,
		r.idleTimeout,
		func() { r.Remove(guildID) },
	)
	entry.session = session

	slog.Info("created session", "guild", guildID, "channel", join.ChannelID)
	return session, nil
}

// Get returns the guild's session, or nil if none exists. A session being
// created for the guild is waited for, keeping per-guild operations
// serialized.
func (r *Registry) Get(guildID snowflake.ID) *Session {
	r.mu.Lock()
	entry, ok := r.entries[guildID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session
}

// Remove tears down the guild's session and deletes the entry. Safe to
// call concurrently and repeatedly: a second call while teardown is in
// progress returns immediately.
func (r *Registry) Remove(guildID snowflake.ID) {
	r.mu.Lock()
	entry, ok := r.entries[guildID]
	if ok {
		delete(r.entries, guildID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session != nil {
		entry.session.close()
		entry.session = nil
		slog.Info("removed session", "guild", guildID)
	}
}

// GuildIDs returns the guilds that currently have a session.
func (r *Registry) GuildIDs() []snowflake.ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]snowflake.ID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close tears down every session. Used at shutdown.
func (r *Registry) Close() {
	for _, id := range r.GuildIDs() {
		r.Remove(id)
	}
}

// dropEmptyEntry deletes the guild's entry if it still holds no session,
// so a failed join leaves nothing registered.
func (r *Registry) dropEmptyEntry(guildID snowflake.ID, entry *registryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.entries[guildID]; ok && current == entry && entry.session == nil {
		delete(r.entries, guildID)
	}
}
