// Package browsertest provides in-memory fakes for the browser controller
// and handle, so session, relay, and HTTP tests run without a real Chrome.
package browsertest

import (
	"context"
	"sync"

	"github.com/Slavikss/musicroast/internal/browser"
)

// Controller is a fake browser.Controller. Configure its fields before
// use; the zero value starts successfully and never finds a token.
type Controller struct {
	mu sync.Mutex

	// StartErr, when set, is returned by Start and no handle is created.
	StartErr error

	// Handles collects every handle Start has produced.
	Handles []*Handle

	// LastOptions records the options of the most recent Start call.
	LastOptions browser.StartOptions
}

func (c *Controller) Start(_ context.Context, opts browser.StartOptions) (browser.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.StartErr != nil {
		return nil, c.StartErr
	}
	h := &Handle{
		Frame:      []byte("frame"),
		ExtractErr: browser.ErrNotYet,
	}
	c.Handles = append(c.Handles, h)
	c.LastOptions = opts
	return h, nil
}

// Started returns how many handles the controller has produced.
func (c *Controller) Started() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Handles)
}

// Handle is a fake browser.Handle recording all calls.
type Handle struct {
	mu sync.Mutex

	// Frame is returned by CaptureFrame while the handle is live.
	Frame []byte

	// FrameErr, when set, is returned by CaptureFrame instead.
	FrameErr error

	// Token and ExtractErr drive TryExtractToken: the error is returned
	// while set, the token once the error is cleared.
	Token      *browser.Token
	ExtractErr error

	// InjectErr, when set, is returned by InjectInput.
	InjectErr error

	Injected   []browser.InputEvent
	Navigated  []string
	Terminates int
}

func (h *Handle) terminated() bool {
	return h.Terminates > 0
}

func (h *Handle) Navigate(_ context.Context, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.terminated() {
		return browser.ErrTerminated
	}
	h.Navigated = append(h.Navigated, url)
	return nil
}

func (h *Handle) CaptureFrame(_ context.Context) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.terminated() {
		return nil, browser.ErrTerminated
	}
	if h.FrameErr != nil {
		return nil, h.FrameErr
	}
	return h.Frame, nil
}

func (h *Handle) InjectInput(_ context.Context, ev browser.InputEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.terminated() {
		return browser.ErrTerminated
	}
	if h.InjectErr != nil {
		return h.InjectErr
	}
	h.Injected = append(h.Injected, ev)
	return nil
}

func (h *Handle) TryExtractToken(_ context.Context) (*browser.Token, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.terminated() {
		return nil, browser.ErrTerminated
	}
	if h.ExtractErr != nil {
		return nil, h.ExtractErr
	}
	return h.Token, nil
}

func (h *Handle) Terminate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Terminates++
}

// SetToken makes subsequent TryExtractToken calls return tok.
func (h *Handle) SetToken(tok *browser.Token) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Token = tok
	h.ExtractErr = nil
}

// SetExtractErr makes subsequent TryExtractToken calls return err.
func (h *Handle) SetExtractErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ExtractErr = err
}

// SetFrameErr makes subsequent CaptureFrame calls return err.
func (h *Handle) SetFrameErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.FrameErr = err
}

// InjectedEvents returns a copy of all injected events in arrival order.
func (h *Handle) InjectedEvents() []browser.InputEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]browser.InputEvent, len(h.Injected))
	copy(out, h.Injected)
	return out
}

// TerminateCount reports how many times Terminate has been called.
func (h *Handle) TerminateCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Terminates
}
