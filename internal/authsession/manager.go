package authsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Slavikss/musicroast/internal/browser"
	"github.com/Slavikss/musicroast/internal/logging"
	"github.com/Slavikss/musicroast/internal/observability"
	"github.com/Slavikss/musicroast/internal/tokenstore"
)

var (
	// ErrNotFound means no live session exists for the given id.
	ErrNotFound = errors.New("session not found")
	// ErrSessionLimit means the concurrent session cap is reached.
	ErrSessionLimit = errors.New("session limit reached")
	// ErrUnknownProvider means no extractor is registered for the provider.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrAuthTimeout means the login did not complete before the deadline.
	ErrAuthTimeout = errors.New("authentication timed out")
	// ErrAuthFailed means the login reached a terminal failure.
	ErrAuthFailed = errors.New("authentication failed")
)

// Config tunes session lifecycle behavior. Zero values fall back to the
// defaults below.
type Config struct {
	AuthURL           string
	Viewport          browser.Viewport
	MaxSessions       int
	IdleTimeout       time.Duration
	AbsoluteTimeout   time.Duration
	PollInterval      time.Duration
	MaxExtractRetries int
	SweepInterval     time.Duration
}

const (
	DefaultMaxSessions     = 4
	DefaultIdleTimeout     = 15 * time.Minute
	DefaultAbsoluteTimeout = 120 * time.Second
	DefaultPollInterval    = time.Second
	DefaultExtractRetries  = 3
	DefaultSweepInterval   = 30 * time.Second
)

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxSessions <= 0 {
		out.MaxSessions = DefaultMaxSessions
	}
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = DefaultIdleTimeout
	}
	if out.AbsoluteTimeout <= 0 {
		out.AbsoluteTimeout = DefaultAbsoluteTimeout
	}
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.MaxExtractRetries <= 0 {
		out.MaxExtractRetries = DefaultExtractRetries
	}
	if out.SweepInterval <= 0 {
		out.SweepInterval = DefaultSweepInterval
	}
	if out.Viewport.Width <= 0 || out.Viewport.Height <= 0 {
		out.Viewport = browser.Viewport{Width: 1280, Height: 720}
	}
	return out
}

// Manager creates, tracks and expires authentication sessions. It is the
// single writer for session state: relay handlers and watchers request
// transitions through it and never mutate a session directly.
type Manager struct {
	cfg        Config
	controller browser.Controller
	store      *tokenstore.Store
	metrics    *observability.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[string]string

	cron *cron.Cron
}

// NewManager wires a manager over a browser controller and credential
// store. metrics may be nil.
func NewManager(cfg Config, controller browser.Controller, store *tokenstore.Store, metrics *observability.Metrics) *Manager {
	return &Manager{
		cfg:        cfg.withDefaults(),
		controller: controller,
		store:      store,
		metrics:    metrics,
		sessions:   make(map[string]*Session),
		byUser:     make(map[string]string),
	}
}

// Start launches the periodic expiry sweep.
func (m *Manager) Start() {
	if m.cron != nil {
		return
	}
	m.cron = cron.New()
	_, err := m.cron.AddFunc(fmt.Sprintf("@every %s", m.cfg.SweepInterval), m.Sweep)
	if err != nil {
		logging.Errorf("authsession: schedule sweep: %v", err)
		return
	}
	m.cron.Start()
}

// Stop halts the sweep and closes every live session.
func (m *Manager) Stop() {
	if m.cron != nil {
		m.cron.Stop()
		m.cron = nil
	}
	for _, s := range m.snapshot() {
		m.transition(s, StateClosed, "shutdown")
	}
}

// Create starts a browser for the user and registers a session around it.
// A second create for the same user closes the previous session first.
// Start failures leave no session behind.
func (m *Manager) Create(ctx context.Context, userID, provider string, mode browser.Mode, login *browser.LoginCredentials) (*Session, error) {
	extractor := browser.ExtractorFor(provider)
	if extractor == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	now := time.Now()
	s := &Session{
		id:           uuid.NewString(),
		userID:       userID,
		provider:     extractor.Provider(),
		mode:         mode,
		viewport:     m.cfg.Viewport,
		createdAt:    now,
		state:        StateStarting,
		lastActivity: now,
		done:         make(chan struct{}),
		authed:       make(chan struct{}),
	}

	// Close any previous session for the user and claim the user slot in
	// one registry critical section, so two racing creates cannot both
	// pass the supersede check and leave two live sessions behind.
	m.mu.Lock()
	for {
		prevID, ok := m.byUser[userID]
		if !ok {
			break
		}
		prev := m.sessions[prevID]
		if prev == nil {
			delete(m.byUser, userID)
			continue
		}
		m.mu.Unlock()
		logging.Infof("authsession: superseding session %s for user %s", prev.ID(), userID)
		m.transition(prev, StateClosed, "superseded by a newer session")
		m.mu.Lock()
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, ErrSessionLimit
	}
	m.sessions[s.id] = s
	m.byUser[userID] = s.id
	m.mu.Unlock()
	m.metrics.SessionGauge(1)
	m.metrics.SessionEvent("created")

	handle, err := m.controller.Start(ctx, browser.StartOptions{
		Mode:      mode,
		URL:       m.cfg.AuthURL,
		Viewport:  m.cfg.Viewport,
		Extractor: extractor,
		Login:     login,
	})
	if err != nil {
		m.transition(s, StateFailed, "browser start: "+err.Error())
		return nil, err
	}

	s.mu.Lock()
	if s.state != StateStarting {
		// Cancelled while the browser was launching.
		reason := s.reason
		s.mu.Unlock()
		handle.Terminate()
		return nil, fmt.Errorf("session cancelled during start: %s", reason)
	}
	s.handle = handle
	s.state = StateActive
	s.mu.Unlock()

	logging.Infof("authsession: session %s active for user %s (mode=%s)", s.id, userID, mode)
	go m.watch(s)
	return s, nil
}

// Get returns the live session for id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Cancel closes the session with the given id. Cancelling an unknown or
// already terminal session is a no-op.
func (m *Manager) Cancel(id string) {
	s, err := m.Get(id)
	if err != nil {
		return
	}
	m.transition(s, StateClosed, "cancelled")
}

// Fail moves the session to Failed. Used when the relay or watcher hits
// an unrecoverable browser error.
func (m *Manager) Fail(s *Session, reason string) {
	m.transition(s, StateFailed, reason)
}

// Authenticate runs a full headless login and blocks until a credential
// is captured, the attempt fails, or the deadline passes. The session is
// an implementation detail here; callers only see the token.
func (m *Manager) Authenticate(ctx context.Context, userID string, creds browser.LoginCredentials, mode browser.Mode) (*browser.Token, error) {
	s, err := m.Create(ctx, userID, "yandex", mode, &creds)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(m.cfg.AbsoluteTimeout)
	defer timer.Stop()

	select {
	case <-s.Authenticated():
		return s.Token(), nil
	case <-s.Done():
		if s.State() == StateExpired {
			return nil, ErrAuthTimeout
		}
		return nil, fmt.Errorf("%w: %s", ErrAuthFailed, s.Reason())
	case <-timer.C:
		m.transition(s, StateExpired, "login deadline exceeded")
		return nil, ErrAuthTimeout
	case <-ctx.Done():
		m.transition(s, StateClosed, "caller gone")
		return nil, ctx.Err()
	}
}

// Sweep expires sessions that violated the idle or absolute timeout.
func (m *Manager) Sweep() {
	now := time.Now()
	for _, s := range m.snapshot() {
		if s.timedOut(now, m.cfg.IdleTimeout, m.cfg.AbsoluteTimeout) {
			logging.Infof("authsession: session %s expired", s.ID())
			m.transition(s, StateExpired, "session timed out")
		}
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// transition is the only place session state changes. On a terminal
// transition it closes the signal channels, releases the browser once,
// and drops the session from the registry. Returns false if the session
// was already terminal.
func (m *Manager) transition(s *Session, next State, reason string) bool {
	s.mu.Lock()
	if s.state.Terminal() || s.state == next {
		s.mu.Unlock()
		return false
	}
	s.state = next
	if reason != "" {
		s.reason = reason
	}
	handle := s.handle
	if next.Terminal() {
		// Authenticated goes through completeAuth, which also closes authed.
		close(s.done)
	}
	s.mu.Unlock()

	if !next.Terminal() {
		return true
	}
	m.release(s, handle, next)
	return true
}

// completeAuth stores the captured credential and marks the session
// authenticated in one step: the terminal check, the store write and the
// channel closes happen under the session lock, so a concurrent cancel
// either wins outright or sees the token already stored. The store write
// precedes the Authenticated signal so the credential is retrievable the
// moment it fires.
func (m *Manager) completeAuth(s *Session, tok *browser.Token) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateAuthenticated
	s.token = tok
	m.store.Put(s.userID, s.provider, tok.AccessToken, tok.ExpiresIn)
	close(s.authed)
	close(s.done)
	handle := s.handle
	s.mu.Unlock()

	m.metrics.SetStoredTokens(m.store.Len())
	logging.Infof("authsession: session %s authenticated, credential stored for user %s", s.id, s.userID)
	m.release(s, handle, StateAuthenticated)
}

// release is the shared tail of every terminal transition: free the
// browser, drop the session from the registry, account for it.
func (m *Manager) release(s *Session, handle browser.Handle, next State) {
	if handle != nil {
		handle.Terminate()
	}

	m.mu.Lock()
	delete(m.sessions, s.id)
	if m.byUser[s.userID] == s.id {
		delete(m.byUser, s.userID)
	}
	m.mu.Unlock()

	m.metrics.SessionGauge(-1)
	m.metrics.SessionEvent(string(next))
	if next == StateAuthenticated || next == StateFailed {
		m.metrics.AuthOutcome(string(next))
	}
	logging.Infof("authsession: session %s -> %s", s.id, next)
}
