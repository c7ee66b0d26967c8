package authsession

import (
	"context"
	"testing"
	"time"

	"github.com/Slavikss/musicroast/internal/browser"
)

func TestWatcherStoresCapturedToken(t *testing.T) {
	m, ctrl, store := testManager(t, Config{})

	s, err := m.Create(context.Background(), "u1", "yandex", browser.ModeInteractive, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctrl.Handles[0].SetToken(&browser.Token{AccessToken: "tok-9", ExpiresIn: 3600 * time.Second})
	waitClosed(t, s.Authenticated())

	if s.State() != StateAuthenticated {
		t.Fatalf("state = %s, want %s", s.State(), StateAuthenticated)
	}
	if s.Token() == nil || s.Token().AccessToken != "tok-9" {
		t.Fatal("session token not set")
	}

	rec, err := store.Get("u1", "yandex")
	if err != nil {
		t.Fatalf("stored token: %v", err)
	}
	if rec.Token != "tok-9" {
		t.Fatalf("stored token = %q, want tok-9", rec.Token)
	}
	if got := rec.TTL(time.Now()); got > 3600*time.Second || got < 3500*time.Second {
		t.Fatalf("stored TTL = %s, want about 1h", got)
	}
	if n := ctrl.Handles[0].TerminateCount(); n != 1 {
		t.Fatalf("Terminate called %d times, want 1", n)
	}
}

func TestWatcherFailsAfterRepeatedExtractionFailures(t *testing.T) {
	m, ctrl, store := testManager(t, Config{MaxExtractRetries: 2})

	s, err := m.Create(context.Background(), "u1", "yandex", browser.ModeInteractive, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctrl.Handles[0].SetExtractErr(browser.ErrExtractionFailed)
	waitClosed(t, s.Done())

	if s.State() != StateFailed {
		t.Fatalf("state = %s, want %s", s.State(), StateFailed)
	}
	if _, err := store.Get("u1", "yandex"); err == nil {
		t.Fatal("token stored for a failed session")
	}
}

func TestWatcherFailsOnBrowserDeath(t *testing.T) {
	m, ctrl, _ := testManager(t, Config{})

	s, err := m.Create(context.Background(), "u1", "yandex", browser.ModeInteractive, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Kill the browser out from under the session.
	ctrl.Handles[0].Terminate()
	waitClosed(t, s.Done())

	if s.State() != StateFailed {
		t.Fatalf("state = %s, want %s", s.State(), StateFailed)
	}
}

func TestWatcherStopsWhenSessionCancelled(t *testing.T) {
	m, ctrl, store := testManager(t, Config{})

	s, err := m.Create(context.Background(), "u1", "yandex", browser.ModeInteractive, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	m.Cancel(s.ID())
	waitClosed(t, s.Done())

	// A token surfacing after cancellation must not be stored.
	ctrl.Handles[0].SetToken(&browser.Token{AccessToken: "late", ExpiresIn: time.Hour})
	time.Sleep(30 * time.Millisecond)

	if s.State() != StateClosed {
		t.Fatalf("state = %s, want %s", s.State(), StateClosed)
	}
	if _, err := store.Get("u1", "yandex"); err == nil {
		t.Fatal("token stored after cancellation")
	}
}
