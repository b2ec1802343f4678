package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const sessionCookie = "kanade_session"

// Discord OAuth endpoints.
var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

const discordUserEndpoint = "https://discord.com/api/users/@me"

// RoleProvider looks up the role IDs a user holds in a guild. The bot's
// gateway session backs the production implementation.
type RoleProvider interface {
	MemberRoles(guildID, userID string) ([]string, error)
}

// discordUser is the subset of the /users/@me payload the dashboard needs.
type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type authSession struct {
	userID    string
	username  string
	expiresAt time.Time
}

// sessionStore holds issued dashboard sessions keyed by bearer token.
// Tokens are opaque UUIDs; nothing about the Discord user is encoded in
// them.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]authSession
	ttl      time.Duration
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]authSession),
		ttl:      ttl,
	}
}

func (s *sessionStore) issue(user discordUser) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = authSession{
		userID:    user.ID,
		username:  user.Username,
		expiresAt: time.Now().Add(s.ttl),
	}
	return token
}

func (s *sessionStore) lookup(token string) (authSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return authSession{}, false
	}
	if time.Now().After(sess.expiresAt) {
		delete(s.sessions, token)
		return authSession{}, false
	}
	return sess, true
}

func (s *sessionStore) revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Authenticator implements the Discord OAuth login flow and the session
// and role gates for the API routes.
type Authenticator struct {
	oauth        *oauth2.Config
	roles        RoleProvider
	guildID      string
	requiredRole string
	sessions     *sessionStore
	userEndpoint string

	mu     sync.Mutex
	states map[string]time.Time // pending OAuth state values
}

// NewAuthenticator creates an Authenticator from the dashboard config.
func NewAuthenticator(cfg *Config, roles RoleProvider) *Authenticator {
	return &Authenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       []string{"identify"},
			Endpoint:     discordEndpoint,
		},
		roles:        roles,
		guildID:      cfg.AuthGuildID,
		requiredRole: cfg.RequiredRoleID,
		sessions:     newSessionStore(cfg.SessionTTL),
		userEndpoint: discordUserEndpoint,
		states:       make(map[string]time.Time),
	}
}

// HandleLogin redirects the browser to the Discord authorization page.
func (a *Authenticator) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	a.mu.Lock()
	a.states[state] = time.Now().Add(10 * time.Minute)
	a.mu.Unlock()

	http.Redirect(w, r, a.oauth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback exchanges the authorization code, verifies the role
// requirement, and issues a dashboard session cookie.
func (a *Authenticator) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if !a.consumeState(r.URL.Query().Get("state")) {
		respondError(w, http.StatusBadRequest, "invalid_state", "unknown or expired OAuth state")
		return
	}

	token, err := a.oauth.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		respondError(w, http.StatusBadGateway, "oauth_exchange_failed", "failed to exchange authorization code")
		return
	}

	user, err := a.fetchUser(r.Context(), token)
	if err != nil {
		respondError(w, http.StatusBadGateway, "identity_fetch_failed", "failed to fetch Discord identity")
		return
	}

	allowed, err := a.hasRequiredRole(user.ID)
	if err != nil {
		respondError(w, http.StatusBadGateway, "role_check_failed", "failed to check guild membership")
		return
	}
	if !allowed {
		respondError(w, http.StatusForbidden, "missing_role", "your Discord account does not hold the required role")
		return
	}

	sessionToken := a.sessions.issue(user)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// HandleLogout revokes the session bound to the request, if any.
func (a *Authenticator) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		a.sessions.revoke(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	respondJSON(w, http.StatusOK, map[string]any{"status": "logged out"})
}

// RequireSession is middleware rejecting requests without a valid
// dashboard session.
func (a *Authenticator) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing_session", "authentication required")
			return
		}
		if _, ok := a.sessions.lookup(token); !ok {
			respondError(w, http.StatusUnauthorized, "invalid_session", "session is invalid or expired")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) consumeState(state string) bool {
	if state == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	deadline, ok := a.states[state]
	if !ok {
		return false
	}
	delete(a.states, state)
	return time.Now().Before(deadline)
}

func (a *Authenticator) fetchUser(ctx context.Context, token *oauth2.Token) (discordUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userEndpoint, nil)
	if err != nil {
		return discordUser{}, err
	}
	token.SetAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return discordUser{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return discordUser{}, fmt.Errorf("identity endpoint returned %d", resp.StatusCode)
	}

	var user discordUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return discordUser{}, err
	}
	return user, nil
}

func (a *Authenticator) hasRequiredRole(userID string) (bool, error) {
	roles, err := a.roles.MemberRoles(a.guildID, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(roles, a.requiredRole), nil
}

// bearerToken extracts the session token from the Authorization header or
// the session cookie. The header wins when both are present.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:]
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}
