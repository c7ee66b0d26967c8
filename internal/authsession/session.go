// Package authsession owns the lifecycle of interactive authentication
// sessions. Each session binds one external user to one browser process;
// the manager is the only component allowed to transition session state,
// and every terminal transition releases the browser exactly once.
package authsession

import (
	"sync"
	"time"

	"github.com/Slavikss/musicroast/internal/browser"
)

// State is a session lifecycle state.
type State string

const (
	StateStarting      State = "starting"
	StateActive        State = "active"
	StateAuthenticated State = "authenticated"
	StateFailed        State = "failed"
	StateExpired       State = "expired"
	StateClosed        State = "closed"
)

// Terminal reports whether no further transition can occur from s.
func (s State) Terminal() bool {
	switch s {
	case StateAuthenticated, StateFailed, StateExpired, StateClosed:
		return true
	}
	return false
}

// Session is one in-progress authentication attempt. All state mutation
// goes through the Manager; everything here is read-side accessors plus
// the activity timestamp, which relay loops bump directly.
type Session struct {
	id       string
	userID   string
	provider string
	mode     browser.Mode
	viewport browser.Viewport

	createdAt time.Time

	mu           sync.Mutex
	state        State
	lastActivity time.Time
	handle       browser.Handle
	token        *browser.Token
	reason       string

	// done closes on any terminal transition; authed closes only on
	// Authenticated, after the token is readable.
	done   chan struct{}
	authed chan struct{}
}

func (s *Session) ID() string                 { return s.id }
func (s *Session) UserID() string             { return s.userID }
func (s *Session) Provider() string           { return s.provider }
func (s *Session) Mode() browser.Mode         { return s.mode }
func (s *Session) Viewport() browser.Viewport { return s.viewport }
func (s *Session) CreatedAt() time.Time       { return s.createdAt }

// Done is closed once the session reaches any terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Authenticated is closed once a credential has been captured and stored.
func (s *Session) Authenticated() <-chan struct{} { return s.authed }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason explains the terminal state; empty while the session is live.
func (s *Session) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Handle returns the browser handle; nil until the session is Active.
func (s *Session) Handle() browser.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Token returns the captured credential; nil until Authenticated.
func (s *Session) Token() *browser.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// LastActivityAt returns when the session last saw relay traffic.
func (s *Session) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Touch marks the session as active now. Called on every inbound input
// event and outbound frame; a disconnected channel simply stops touching,
// letting the idle timeout take over.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// timedOut reports whether the session violated its idle or absolute
// timeout at the given instant. Terminal sessions never time out.
func (s *Session) timedOut(now time.Time, idle, absolute time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	if idle > 0 && now.Sub(s.lastActivity) > idle {
		return true
	}
	if absolute > 0 && now.Sub(s.createdAt) > absolute {
		return true
	}
	return false
}
