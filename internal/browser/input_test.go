package browser

import (
	"testing"

	"github.com/chromedp/cdproto/input"
)

func TestMouseActionClampsAndMaps(t *testing.T) {
	vp := Viewport{Width: 800, Height: 600}

	ev := InputEvent{
		Type: "mouse", Event: "down",
		X: 9000, Y: -4,
		Button:    2,
		Modifiers: Modifiers{Ctrl: true, Shift: true},
	}
	p, err := ev.mouseAction(vp)
	if err != nil {
		t.Fatalf("mouseAction() error = %v", err)
	}
	if p.Type != input.MousePressed {
		t.Fatalf("type = %v, want mousePressed", p.Type)
	}
	if p.X != 799 || p.Y != 0 {
		t.Fatalf("coords = (%v, %v), want clamped (799, 0)", p.X, p.Y)
	}
	if p.Button != input.Right {
		t.Fatalf("button = %v, want right", p.Button)
	}
	if p.ClickCount != 1 {
		t.Fatalf("clickCount = %d, want default 1", p.ClickCount)
	}
	if want := input.ModifierCtrl | input.ModifierShift; p.Modifiers != want {
		t.Fatalf("modifiers = %v, want %v", p.Modifiers, want)
	}
}

func TestMouseActionWheel(t *testing.T) {
	ev := InputEvent{Type: "mouse", Event: "wheel", X: 10, Y: 20, DeltaX: 1.5, DeltaY: -30}
	p, err := ev.mouseAction(Viewport{Width: 100, Height: 100})
	if err != nil {
		t.Fatalf("mouseAction() error = %v", err)
	}
	if p.Type != input.MouseWheel || p.DeltaX != 1.5 || p.DeltaY != -30 {
		t.Fatalf("wheel params = %+v", p)
	}
}

func TestMouseActionUnknownEvent(t *testing.T) {
	ev := InputEvent{Type: "mouse", Event: "hover"}
	if _, err := ev.mouseAction(Viewport{}); err == nil {
		t.Fatal("expected error for unsupported mouse event")
	}
}

func TestKeyActionTextFallback(t *testing.T) {
	ev := InputEvent{
		Type: "keyboard", Event: "down",
		Key: "a", Code: "KeyA", KeyCode: 65, IsText: true,
	}
	p, err := ev.keyAction()
	if err != nil {
		t.Fatalf("keyAction() error = %v", err)
	}
	if p.Type != input.KeyDown {
		t.Fatalf("type = %v, want keyDown", p.Type)
	}
	// Single printable keys without explicit text still produce a char.
	if p.Text != "a" || p.UnmodifiedText != "a" {
		t.Fatalf("text = %q/%q, want a/a", p.Text, p.UnmodifiedText)
	}
	if p.WindowsVirtualKeyCode != 65 || p.NativeVirtualKeyCode != 65 {
		t.Fatalf("key codes = %d/%d, want 65/65", p.WindowsVirtualKeyCode, p.NativeVirtualKeyCode)
	}
}

func TestKeyActionChar(t *testing.T) {
	ev := InputEvent{Type: "keyboard", Event: "char", Key: "ф", Text: "ф"}
	p, err := ev.keyAction()
	if err != nil {
		t.Fatalf("keyAction() error = %v", err)
	}
	if p.Type != input.KeyChar || p.Text != "ф" {
		t.Fatalf("char params = %+v", p)
	}
}

func TestModifierMask(t *testing.T) {
	m := Modifiers{Alt: true, Meta: true}
	if got, want := m.mask(), input.ModifierAlt|input.ModifierMeta; got != want {
		t.Fatalf("mask = %v, want %v", got, want)
	}
	if got := (Modifiers{}).mask(); got != 0 {
		t.Fatalf("empty mask = %v, want 0", got)
	}
}
