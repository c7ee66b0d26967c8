package authsession

import (
	"context"
	"errors"
	"time"

	"github.com/Slavikss/musicroast/internal/browser"
	"github.com/Slavikss/musicroast/internal/logging"
)

const extractAttemptTimeout = 5 * time.Second

// watch polls the browser for a captured credential until the session
// terminates. Landing on a terminal page without a token counts as an
// extraction failure; a streak of those fails the session, while plain
// "not yet" results reset the streak.
func (m *Manager) watch(s *Session) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	fails := 0
	for {
		select {
		case <-s.Done():
			return
		case <-ticker.C:
		}

		handle := s.Handle()
		if handle == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), extractAttemptTimeout)
		tok, err := handle.TryExtractToken(ctx)
		cancel()

		switch {
		case err == nil && tok != nil:
			m.completeAuth(s, tok)
			return
		case errors.Is(err, browser.ErrNotYet):
			fails = 0
		case errors.Is(err, browser.ErrExtractionFailed):
			fails++
			logging.Warnf("authsession: session %s extraction failed (%d/%d)", s.ID(), fails, m.cfg.MaxExtractRetries)
			if fails >= m.cfg.MaxExtractRetries {
				m.Fail(s, "login finished without a usable credential")
				return
			}
		case errors.Is(err, browser.ErrTerminated):
			// Terminal transition already released the browser; if the
			// session is still live the process died underneath us.
			if !s.State().Terminal() {
				m.Fail(s, "browser terminated unexpectedly")
			}
			return
		case errors.Is(err, context.DeadlineExceeded):
			logging.Debugf("authsession: session %s extraction attempt timed out", s.ID())
		default:
			m.Fail(s, "token extraction: "+err.Error())
			return
		}
	}
}
