package browser

import (
	"context"
	"errors"
	"testing"
)

// crashedHandle builds a handle whose target context is already dead, the
// state a handle is left in when the Chrome process dies underneath it.
func crashedHandle() *chromeHandle {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return &chromeHandle{
		ctx:          ctx,
		cancelTarget: func() {},
		cancelAlloc:  func() {},
		viewport:     Viewport{Width: 1280, Height: 720},
		extractor:    YandexExtractor{},
		release:      func() {},
		done:         make(chan struct{}),
	}
}

func TestHandleReportsTerminatedAfterBrowserDeath(t *testing.T) {
	h := crashedHandle()

	if _, err := h.TryExtractToken(context.Background()); !errors.Is(err, ErrTerminated) {
		t.Fatalf("TryExtractToken err = %v, want ErrTerminated", err)
	}
	if _, err := h.CaptureFrame(context.Background()); !errors.Is(err, ErrTerminated) {
		t.Fatalf("CaptureFrame err = %v, want ErrTerminated", err)
	}
	ev := InputEvent{Type: "mouse", Event: "down", X: 1, Y: 1}
	if err := h.InjectInput(context.Background(), ev); !errors.Is(err, ErrTerminated) {
		t.Fatalf("InjectInput err = %v, want ErrTerminated", err)
	}
	if err := h.Navigate(context.Background(), "https://example.com"); !errors.Is(err, ErrTerminated) {
		t.Fatalf("Navigate err = %v, want ErrTerminated", err)
	}

	// Terminate stays safe after the process is already gone.
	h.Terminate()
	h.Terminate()
}

func TestControllerCapFailsFast(t *testing.T) {
	c := NewChromeController(ControllerConfig{MaxInstances: 1})
	c.mu.Lock()
	c.live = 1
	c.mu.Unlock()

	_, err := c.Start(context.Background(), StartOptions{Mode: ModeHeadless})
	if !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("err = %v, want ErrResourceExhausted", err)
	}
}
