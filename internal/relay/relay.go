// Package relay bridges a duplex WebSocket to a live authentication
// session: screen frames and the final outcome flow out, user input
// flows in. The channel is disposable; dropping it never touches the
// session, so a client can reconnect to the same session id.
package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Slavikss/musicroast/internal/authsession"
	"github.com/Slavikss/musicroast/internal/browser"
	"github.com/Slavikss/musicroast/internal/logging"
	"github.com/Slavikss/musicroast/internal/observability"
)

const (
	// DefaultFrameInterval is the screen streaming cadence.
	DefaultFrameInterval = 400 * time.Millisecond

	captureTimeout = 2 * time.Second
	injectTimeout  = time.Second
)

// Outbound message types.
const (
	msgInit  = "init"
	msgFrame = "frame"
	msgToken = "token"
	msgPong  = "pong"
	msgError = "error"
)

type outbound struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Image       string `json:"image,omitempty"`
	TS          int64  `json:"ts,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Handler serves WebSocket channels over authentication sessions.
type Handler struct {
	Manager *authsession.Manager
	Metrics *observability.Metrics

	// FrameInterval overrides the streaming cadence; zero means default.
	FrameInterval time.Duration

	upgrader websocket.Upgrader
}

// NewHandler builds a relay handler. The upgrader accepts any origin;
// access control happens before the upgrade, at the HTTP layer.
func NewHandler(m *authsession.Manager, metrics *observability.Metrics) *Handler {
	return &Handler{
		Manager: m,
		Metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 32 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// channel serializes writes to one WebSocket connection. Frames, pongs
// and the outcome message come from different goroutines.
type channel struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *channel) send(msg outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

// ServeSession upgrades the request and runs the channel until the
// client disconnects or the session terminates.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request, s *authsession.Session) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Errorf("relay: upgrade failed for session %s: %v", s.ID(), err)
		return
	}
	defer conn.Close()

	c := &channel{conn: conn}
	vp := s.Viewport()
	if err := c.send(outbound{Type: msgInit, SessionID: s.ID(), Width: vp.Width, Height: vp.Height}); err != nil {
		return
	}
	s.Touch()

	stop := make(chan struct{})
	defer close(stop)

	go h.streamFrames(c, s, stop)
	go h.forwardOutcome(c, s, stop)

	h.readInputs(c, s)
}

// streamFrames pushes screenshots at the configured cadence. Capture
// hiccups are skipped; a dead connection or terminated browser ends the
// loop.
func (h *Handler) streamFrames(c *channel, s *authsession.Session, stop <-chan struct{}) {
	interval := h.FrameInterval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-s.Done():
			return
		case <-ticker.C:
		}

		handle := s.Handle()
		if handle == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
		img, err := handle.CaptureFrame(ctx)
		cancel()
		if errors.Is(err, browser.ErrTerminated) {
			return
		}
		if err != nil {
			logging.Debugf("relay: frame capture for session %s: %v", s.ID(), err)
			continue
		}

		msg := outbound{
			Type:  msgFrame,
			Image: base64.StdEncoding.EncodeToString(img),
			TS:    time.Now().UnixMilli(),
		}
		if err := c.send(msg); err != nil {
			return
		}
		// A delivered frame means someone is watching; that keeps the
		// session from idling out, same as inbound input.
		s.Touch()
		h.Metrics.WSMessage("out", msgFrame)
	}
}

// forwardOutcome waits for the session to settle and delivers exactly
// one token or error message, then closes the connection so the read
// loop unblocks.
func (h *Handler) forwardOutcome(c *channel, s *authsession.Session, stop <-chan struct{}) {
	select {
	case <-stop:
		return
	case <-s.Done():
	}

	select {
	case <-s.Authenticated():
		tok := s.Token()
		msg := outbound{
			Type:        msgToken,
			AccessToken: tok.AccessToken,
			ExpiresIn:   int64(tok.ExpiresIn / time.Second),
		}
		if err := c.send(msg); err != nil {
			logging.Errorf("relay: token delivery for session %s: %v", s.ID(), err)
		}
		h.Metrics.WSMessage("out", msgToken)
	default:
		if err := c.send(outbound{Type: msgError, Message: s.Reason()}); err == nil {
			h.Metrics.WSMessage("out", msgError)
		}
	}

	c.mu.Lock()
	c.conn.Close()
	c.mu.Unlock()
}

// readInputs pumps client messages into the browser in arrival order.
// Malformed or unknown messages are dropped without closing the channel.
func (h *Handler) readInputs(c *channel, s *authsession.Session) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var ev browser.InputEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logging.Debugf("relay: dropping malformed message on session %s: %v", s.ID(), err)
			continue
		}

		switch ev.Type {
		case "ping":
			h.Metrics.WSMessage("in", "ping")
			s.Touch()
			if err := c.send(outbound{Type: msgPong}); err != nil {
				return
			}
		case "mouse", "keyboard", "scroll":
			h.Metrics.WSMessage("in", ev.Type)
			s.Touch()
			handle := s.Handle()
			if handle == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), injectTimeout)
			err := handle.InjectInput(ctx, ev)
			cancel()
			if err != nil && !errors.Is(err, browser.ErrTerminated) {
				logging.Debugf("relay: input on session %s: %v", s.ID(), err)
			}
		default:
			logging.Debugf("relay: dropping message of unknown type %q on session %s", ev.Type, s.ID())
		}
	}
}
