// Package gate enforces per-service authentication and authorization:
// credential checks against the user and secret snapshots, session
// lifecycle with a sliding expiry, and the request middleware guarding
// protected services.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/homegate/homegate/internal/auth"
	"github.com/homegate/homegate/internal/config"
	"github.com/homegate/homegate/internal/metrics"
	"github.com/homegate/homegate/internal/session"
)

// Login failure outcomes. Wrong passwords always produce
// ErrInvalidCredentials; a correct password for a user without access to
// the requested service produces the distinct ErrAccessDenied so the UX
// can differ without leaking which usernames exist on bad passwords.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccessDenied       = errors.New("access denied to this service")
)

// dummyHash absorbs a bcrypt comparison for unknown usernames so lookup
// misses take as long as hash mismatches.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Gate validates credentials and manages sessions. One Gate serves all
// services; per-service state lives in the session namespaces it creates
// lazily through the adapter.
type Gate struct {
	users    map[string]config.User
	secrets  *config.Secrets
	sessions *session.Adapter
	ttl      time.Duration
	log      *slog.Logger
}

// New builds a Gate over the loaded user and secret snapshots.
func New(users []config.User, secrets *config.Secrets, sessions *session.Adapter, ttl time.Duration, logger *slog.Logger) *Gate {
	byName := make(map[string]config.User, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}
	return &Gate{
		users:    byName,
		secrets:  secrets,
		sessions: sessions,
		ttl:      ttl,
		log:      logger,
	}
}

// Login validates credentials for a service and creates a session on
// success, returning the new opaque session id.
func (g *Gate) Login(ctx context.Context, serviceName, username, password string) (string, error) {
	if err := g.checkCredentials(serviceName, username, password); err != nil {
		metrics.AuthFailures.WithLabelValues(serviceName).Inc()
		return "", err
	}

	id := uuid.NewString()
	sess := session.Session{
		Authenticated: true,
		Username:      username,
		ExpiresAt:     time.Now().Add(g.ttl),
	}
	if err := g.sessions.Get(serviceName).Put(ctx, id, sess); err != nil {
		return "", err
	}
	g.log.Info("login", "service", serviceName, "username", username)
	return id, nil
}

func (g *Gate) checkCredentials(serviceName, username, password string) error {
	// The privileged API service accepts only the admin identity.
	if serviceName == config.APIService {
		if username == g.secrets.AdminEmail && auth.VerifyPassword(g.secrets.AdminPasswordHash, password) {
			return nil
		}
		return ErrInvalidCredentials
	}

	// Admin identity is checked first for every other service.
	if username == g.secrets.AdminEmail {
		if auth.VerifyPassword(g.secrets.AdminPasswordHash, password) {
			return nil
		}
		return ErrInvalidCredentials
	}

	user, ok := g.users[username]
	if !ok {
		auth.VerifyPassword(dummyHash, password)
		return ErrInvalidCredentials
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return ErrInvalidCredentials
	}
	if !user.AllowsService(serviceName) {
		return ErrAccessDenied
	}
	return nil
}

// Authorize reports whether username may access serviceName. It is a pure
// function of the loaded snapshots: the admin identity is authorized for
// everything except the privileged API service, ordinary users for the
// services in their set (or all, via the wildcard). Unknown usernames are
// never authorized.
func (g *Gate) Authorize(username, serviceName string) bool {
	if username == g.secrets.AdminEmail {
		return serviceName != config.APIService
	}
	user, ok := g.users[username]
	if !ok {
		return false
	}
	return user.AllowsService(serviceName)
}

// AdmitSession reports whether an authenticated session may keep using a
// service. The privileged API service admits only the admin identity,
// matching its login check; every other service defers to Authorize.
func (g *Gate) AdmitSession(username, serviceName string) bool {
	if serviceName == config.APIService {
		return username == g.secrets.AdminEmail
	}
	return g.Authorize(username, serviceName)
}

// Authenticate resolves a session id within the service's namespace and,
// when valid, extends the sliding expiry. Store failures count as "not
// authenticated" and force a re-login.
func (g *Gate) Authenticate(ctx context.Context, serviceName, sessionID string) (session.Session, bool) {
	if sessionID == "" {
		return session.Session{}, false
	}
	store := g.sessions.Get(serviceName)
	sess, err := store.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			g.log.Warn("session read failed", "service", serviceName, "err", err)
		}
		return session.Session{}, false
	}
	if !sess.Authenticated {
		return session.Session{}, false
	}

	// Sliding window: extend on every authorized request. Best effort;
	// a failed write only shortens the session.
	sess.ExpiresAt = time.Now().Add(g.ttl)
	if err := store.Put(ctx, sessionID, sess); err != nil {
		g.log.Warn("session refresh failed", "service", serviceName, "err", err)
	}
	return sess, true
}

// Logout destroys the session in the service's namespace.
func (g *Gate) Logout(ctx context.Context, serviceName, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := g.sessions.Get(serviceName).Delete(ctx, sessionID); err != nil {
		g.log.Warn("session delete failed", "service", serviceName, "err", err)
	}
}
