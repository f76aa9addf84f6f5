package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"perfview/internal/api"
	"perfview/internal/credstore"
)

// Authenticator performs the credential exchange with the analyzer
// service. *api.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, username, password, code string) (api.User, error)
}

// Manager owns the singleton session. Everything else reads snapshots;
// only Hydrate, Login and Logout mutate, and each keeps the in-memory
// session and the credential store in step under one lock.
type Manager struct {
	store *credstore.Store
	auth  Authenticator
	log   zerolog.Logger

	mu      sync.RWMutex
	sess    *Session
	loading bool
}

func NewManager(store *credstore.Store, auth Authenticator, log zerolog.Logger) *Manager {
	return &Manager{
		store:   store,
		auth:    auth,
		log:     log,
		loading: true,
	}
}

// Hydrate restores the session persisted by a previous run. Anything
// short of a well-formed token/profile pair leaves the session empty
// and the store cleared. It always completes, and the loading flag is
// down on return; callers make no authorization decision before that.
func (m *Manager) Hydrate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.loading = false }()

	token, profile, err := m.store.Load()
	if err != nil {
		if !errors.Is(err, credstore.ErrNoCredentials) {
			m.log.Warn().Err(err).Msg("credential store unreadable, starting signed out")
		}
		m.sess = nil
		return
	}

	role, err := ParseRole(profile.Role)
	if err != nil {
		m.log.Warn().Err(err).Msg("stored profile invalid, clearing credentials")
		if err := m.store.Clear(); err != nil {
			m.log.Error().Err(err).Msg("clearing credential store failed")
		}
		m.sess = nil
		return
	}

	m.sess = &Session{
		UserID:   profile.ID,
		Username: profile.Username,
		Role:     role,
		Token:    token,
	}
	m.log.Info().Str("username", profile.Username).Str("role", profile.Role).
		Msg("session restored from credential store")
}

// Login exchanges credentials for a session. On success the store and
// the in-memory session are updated under one lock hold, so no caller
// observes one without the other. On failure both stay untouched and
// the returned error message is fit to show the user.
func (m *Manager) Login(ctx context.Context, username, password, code string) error {
	user, err := m.auth.Login(ctx, username, password, code)
	if err != nil {
		m.log.Warn().Err(err).Str("username", username).Msg("login rejected")
		return errors.New(api.Message(err, "Login failed"))
	}

	role, err := ParseRole(user.Role)
	if err != nil {
		return fmt.Errorf("server returned %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	profile := credstore.Profile{ID: user.ID, Username: user.Username, Role: user.Role}
	if err := m.store.Save(user.Token, profile); err != nil {
		m.log.Error().Err(err).Msg("persisting credentials failed")
		return errors.New("Could not save login state")
	}

	m.sess = &Session{
		UserID:   user.ID,
		Username: user.Username,
		Role:     role,
		Token:    user.Token,
	}
	m.log.Info().Str("username", user.Username).Str("role", user.Role).Msg("logged in")
	return nil
}

// Logout clears the session and the store. It never fails: a store
// error is logged and the in-memory session still goes away, which
// also stops the credential from being attached to further requests.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.log.Error().Err(err).Msg("clearing credential store failed")
	}
	if m.sess != nil {
		m.log.Info().Str("username", m.sess.Username).Msg("logged out")
	}
	m.sess = nil
}

// Snapshot returns a copy of the current session, if any.
func (m *Manager) Snapshot() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil {
		return Session{}, false
	}
	return *m.sess, true
}

// Loading reports whether hydration has yet to complete.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// Token implements api.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil {
		return ""
	}
	return m.sess.Token
}
