// Package browser drives server-side Chrome instances over the DevTools
// protocol. Each authentication session owns exactly one browser process:
// the controller launches it, the handle navigates it, streams viewport
// frames, injects remote input, and watches for the OAuth access token.
package browser

import (
	"context"
	"errors"
	"time"
)

// Mode selects how a browser instance is run.
type Mode string

const (
	// ModeHeadless runs the browser without a visible renderer surface;
	// used for fully automated logins.
	ModeHeadless Mode = "headless"

	// ModeInteractive runs the browser for live frame streaming and
	// remote input.
	ModeInteractive Mode = "interactive"
)

// Provisioning errors surfaced by Start. None of them leaves a browser
// process behind.
var (
	// ErrDriverUnavailable means no usable Chrome/Chromium binary was found.
	ErrDriverUnavailable = errors.New("no compatible browser binary found")

	// ErrLaunchTimeout means the browser did not come up within the
	// configured launch deadline.
	ErrLaunchTimeout = errors.New("browser launch timed out")

	// ErrResourceExhausted means the concurrent-instance cap was reached.
	ErrResourceExhausted = errors.New("browser instance limit reached")
)

// Runtime errors surfaced by handle operations.
var (
	// ErrTerminated means the handle's browser process is gone.
	ErrTerminated = errors.New("browser terminated")

	// ErrNotYet means the login flow has not reached the authenticated
	// page. Not an error in the escalation sense; callers keep polling.
	ErrNotYet = errors.New("no token yet")

	// ErrExtractionFailed means the terminal page was reached but no
	// recognizable token could be parsed from it.
	ErrExtractionFailed = errors.New("token extraction failed")
)

// Viewport is the emulated browser window size.
type Viewport struct {
	Width  int
	Height int
}

// Clamp constrains device coordinates to the viewport. Out-of-viewport
// input is clamped, never rejected.
func (v Viewport) Clamp(x, y float64) (float64, float64) {
	if x < 0 {
		x = 0
	} else if v.Width > 0 && x > float64(v.Width-1) {
		x = float64(v.Width - 1)
	}
	if y < 0 {
		y = 0
	} else if v.Height > 0 && y > float64(v.Height-1) {
		y = float64(v.Height - 1)
	}
	return x, y
}

// LoginCredentials drive the best-effort automated form login used by the
// headless path. The password is never logged.
type LoginCredentials struct {
	Username string
	Password string
	OTP      string
}

// StartOptions configure one browser instance.
type StartOptions struct {
	Mode      Mode
	URL       string
	Viewport  Viewport
	Extractor Extractor
	Login     *LoginCredentials
}

// Controller launches browser instances. Implemented by ChromeController;
// tests substitute fakes.
type Controller interface {
	Start(ctx context.Context, opts StartOptions) (Handle, error)
}

// Handle is the live reference to one running browser process. All
// methods other than Terminate return ErrTerminated once the process is
// released. Terminate is idempotent and safe to call concurrently with
// any in-flight operation.
type Handle interface {
	Navigate(ctx context.Context, url string) error
	CaptureFrame(ctx context.Context) ([]byte, error)
	InjectInput(ctx context.Context, ev InputEvent) error
	TryExtractToken(ctx context.Context) (*Token, error)
	Terminate()
}

// Token is a captured OAuth access token.
type Token struct {
	AccessToken string
	// ExpiresIn is the provider-reported lifetime; zero when the provider
	// did not report one.
	ExpiresIn time.Duration
}
