package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Slavikss/musicroast/internal/logging"
)

const (
	// DefaultMaxInstances bounds concurrent browser processes. Each one is
	// a full Chrome; spawning them unbounded under load is how servers die.
	DefaultMaxInstances = 4

	// DefaultLaunchTimeout is how long Start waits for the browser to come
	// up and reach the auth page.
	DefaultLaunchTimeout = 30 * time.Second

	frameQuality = 80
)

// ControllerConfig configures the Chrome controller.
type ControllerConfig struct {
	// ExecutablePath overrides auto-detection of the browser binary.
	ExecutablePath string

	// NoSandbox disables the Chrome sandbox (needed in some containers).
	NoSandbox bool

	// MaxInstances caps concurrently running browser processes.
	MaxInstances int

	// LaunchTimeout bounds browser startup plus initial navigation.
	LaunchTimeout time.Duration
}

// ChromeController launches Chrome instances over the DevTools protocol.
// Every Start spawns a dedicated process owned by the returned handle.
type ChromeController struct {
	cfg ControllerConfig

	mu   sync.Mutex
	live int
}

// NewChromeController creates a controller with defaults applied.
func NewChromeController(cfg ControllerConfig) *ChromeController {
	if cfg.MaxInstances <= 0 {
		cfg.MaxInstances = DefaultMaxInstances
	}
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = DefaultLaunchTimeout
	}
	return &ChromeController{cfg: cfg}
}

// Start launches a browser, navigates it to opts.URL and returns the live
// handle. Fails fast with ErrResourceExhausted when the instance cap is
// reached and ErrDriverUnavailable when no binary is found; neither leaves
// a process behind.
func (c *ChromeController) Start(ctx context.Context, opts StartOptions) (Handle, error) {
	c.mu.Lock()
	if c.live >= c.cfg.MaxInstances {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %d instances running", ErrResourceExhausted, c.cfg.MaxInstances)
	}
	c.live++
	c.mu.Unlock()

	release := func() {
		c.mu.Lock()
		c.live--
		c.mu.Unlock()
	}

	exe, err := FindChromeExecutable(c.cfg.ExecutablePath)
	if err != nil {
		release()
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(exe.Path),
		chromedp.Flag("headless", opts.Mode == ModeHeadless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-infobars", true),
	)
	if c.cfg.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}

	// The browser outlives the request that created it; its lifetime is
	// bound to the handle, not to ctx.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	targetCtx, cancelTarget := chromedp.NewContext(allocCtx)

	h := &chromeHandle{
		ctx:          targetCtx,
		cancelTarget: cancelTarget,
		cancelAlloc:  cancelAlloc,
		viewport:     opts.Viewport,
		extractor:    opts.Extractor,
		release:      release,
		done:         make(chan struct{}),
	}

	// Token fragments show up in navigation and request URLs; listen from
	// the very first load.
	chromedp.ListenTarget(targetCtx, h.onTargetEvent)

	launchCtx, cancelLaunch := context.WithTimeout(targetCtx, c.cfg.LaunchTimeout)
	defer cancelLaunch()
	stop := context.AfterFunc(ctx, cancelLaunch)
	defer stop()

	actions := []chromedp.Action{
		network.Enable(),
		page.Enable(),
	}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(opts.Viewport.Width), int64(opts.Viewport.Height)))
	}
	actions = append(actions, chromedp.Navigate(opts.URL))

	if err := chromedp.Run(launchCtx, actions...); err != nil {
		h.Terminate()
		if errors.Is(launchCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrLaunchTimeout, c.cfg.LaunchTimeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("browser launch: %w", err)
	}

	if opts.Login != nil && opts.Login.Username != "" {
		go h.autoLogin(*opts.Login)
	}

	logging.Debugf("browser started: %s (%s, mode=%s)", exe.Path, exe.Kind, opts.Mode)
	return h, nil
}

// chromeHandle owns one running browser process.
type chromeHandle struct {
	ctx          context.Context
	cancelTarget context.CancelFunc
	cancelAlloc  context.CancelFunc
	viewport     Viewport
	extractor    Extractor
	release      func()

	terminateOnce sync.Once
	done          chan struct{}

	mu           sync.Mutex
	candidate    string
	terminalSeen bool
}

func (h *chromeHandle) onTargetEvent(ev any) {
	if h.extractor == nil {
		return
	}
	var raw string
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		raw = e.Frame.URL + e.Frame.URLFragment
	case *network.EventRequestWillBeSent:
		raw = e.Request.URL + e.Request.URLFragment
	default:
		return
	}

	hasToken := strings.Contains(raw, "access_token=")
	if !hasToken && !h.extractor.Terminal(raw) {
		return
	}
	h.mu.Lock()
	if hasToken {
		h.candidate = raw
	}
	h.terminalSeen = true
	h.mu.Unlock()
}

func (h *chromeHandle) terminated() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// run executes chromedp actions against the handle's target, honoring the
// caller's context without tying the browser's lifetime to it.
func (h *chromeHandle) run(ctx context.Context, actions ...chromedp.Action) error {
	if h.terminated() {
		return ErrTerminated
	}

	runCtx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil {
		// A cancelled target context means the browser process is gone,
		// whether through Terminate or a crash underneath us.
		if h.terminated() || h.ctx.Err() != nil {
			return ErrTerminated
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

func (h *chromeHandle) Navigate(ctx context.Context, url string) error {
	return h.run(ctx, chromedp.Navigate(url))
}

// CaptureFrame returns the latest rendered viewport as a JPEG.
func (h *chromeHandle) CaptureFrame(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := h.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithQuality(frameQuality).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// InjectInput dispatches one remote input event. Events are applied in
// call order; out-of-viewport coordinates are clamped.
func (h *chromeHandle) InjectInput(ctx context.Context, ev InputEvent) error {
	var action chromedp.Action
	switch ev.Type {
	case "mouse":
		p, err := ev.mouseAction(h.viewport)
		if err != nil {
			return err
		}
		action = p
	case "keyboard":
		p, err := ev.keyAction()
		if err != nil {
			return err
		}
		action = p
	case "scroll":
		action = ev.scrollAction(h.viewport)
	default:
		return fmt.Errorf("unsupported input type %q", ev.Type)
	}
	return h.run(ctx, action)
}

// TryExtractToken checks the URLs the browser has reached for the
// provider's access token. ErrNotYet while the login is still in
// progress; ErrExtractionFailed once the terminal page was reached but
// carried nothing parseable.
func (h *chromeHandle) TryExtractToken(ctx context.Context) (*Token, error) {
	if h.terminated() {
		return nil, ErrTerminated
	}
	if h.extractor == nil {
		return nil, ErrNotYet
	}

	h.mu.Lock()
	candidate, terminal := h.candidate, h.terminalSeen
	h.mu.Unlock()

	if candidate != "" {
		if tok, ok := h.extractor.ExtractFromURL(candidate); ok {
			return tok, nil
		}
	}

	var loc string
	if err := h.run(ctx, chromedp.Location(&loc)); err != nil {
		if errors.Is(err, ErrTerminated) {
			return nil, err
		}
		// Transient CDP hiccup; the session's own timeout bounds retries.
		return nil, ErrNotYet
	}
	if tok, ok := h.extractor.ExtractFromURL(loc); ok {
		return tok, nil
	}
	if terminal || h.extractor.Terminal(loc) {
		return nil, ErrExtractionFailed
	}
	return nil, ErrNotYet
}

// Terminate releases the browser process and all resources. Idempotent;
// safe concurrently with any in-flight handle operation.
func (h *chromeHandle) Terminate() {
	h.terminateOnce.Do(func() {
		close(h.done)
		h.cancelTarget()
		h.cancelAlloc()
		h.release()
	})
}
