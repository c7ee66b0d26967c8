package browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/Slavikss/musicroast/internal/logging"
)

const autoLoginTimeout = 90 * time.Second

// autoLogin fills the provider's login form field by field, submitting
// each with Enter. Best effort: any field that never appears just ends
// the attempt and leaves the page to the user or the watcher timeout.
// Credential values are never logged.
func (h *chromeHandle) autoLogin(creds LoginCredentials) {
	ctx, cancel := context.WithTimeout(h.ctx, autoLoginTimeout)
	defer cancel()

	submit := func(selector, value string) error {
		return chromedp.Run(ctx,
			chromedp.WaitVisible(selector, chromedp.ByQuery),
			chromedp.SendKeys(selector, value+kb.Enter, chromedp.ByQuery),
		)
	}

	if err := submit(`input[name="login"]`, creds.Username); err != nil {
		logging.Debugf("auto-login: login field: %v", err)
		return
	}
	if err := submit(`input[name="passwd"]`, creds.Password); err != nil {
		logging.Debugf("auto-login: password field: %v", err)
		return
	}
	if creds.OTP != "" {
		if err := submit(`input[name="otp"]`, creds.OTP); err != nil {
			logging.Debugf("auto-login: otp field: %v", err)
		}
	}
}
