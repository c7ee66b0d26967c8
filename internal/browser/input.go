package browser

import (
	"fmt"

	"github.com/chromedp/cdproto/input"
)

// Modifiers are the keyboard modifier flags attached to an input event.
type Modifiers struct {
	Alt   bool `json:"alt,omitempty"`
	Ctrl  bool `json:"ctrl,omitempty"`
	Meta  bool `json:"meta,omitempty"`
	Shift bool `json:"shift,omitempty"`
}

func (m Modifiers) mask() input.Modifier {
	var mask input.Modifier
	if m.Alt {
		mask |= input.ModifierAlt
	}
	if m.Ctrl {
		mask |= input.ModifierCtrl
	}
	if m.Meta {
		mask |= input.ModifierMeta
	}
	if m.Shift {
		mask |= input.ModifierShift
	}
	return mask
}

// InputEvent is one remote input event as received from the relay channel.
// Type is "mouse", "keyboard" or "scroll"; Event refines it (move/down/up/
// wheel for mouse, down/up/char for keyboard).
type InputEvent struct {
	Type  string `json:"type"`
	Event string `json:"event"`

	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`

	Button     int    `json:"button,omitempty"`
	Buttons    *int64 `json:"buttons,omitempty"`
	ClickCount int64  `json:"clickCount,omitempty"`

	DeltaX float64 `json:"deltaX,omitempty"`
	DeltaY float64 `json:"deltaY,omitempty"`

	Key            string `json:"key,omitempty"`
	Code           string `json:"code,omitempty"`
	Text           string `json:"text,omitempty"`
	UnmodifiedText string `json:"unmodifiedText,omitempty"`
	KeyCode        int64  `json:"keyCode,omitempty"`
	IsText         bool   `json:"isText,omitempty"`
	Repeat         bool   `json:"repeat,omitempty"`

	Modifiers Modifiers `json:"modifiers,omitempty"`
}

var mouseButtons = map[int]input.MouseButton{
	0: input.Left,
	1: input.Middle,
	2: input.Right,
}

// mouseAction translates a mouse event into a CDP dispatch, clamping the
// coordinates to the viewport.
func (ev InputEvent) mouseAction(vp Viewport) (*input.DispatchMouseEventParams, error) {
	var eventType input.MouseType
	switch ev.Event {
	case "move":
		eventType = input.MouseMoved
	case "down":
		eventType = input.MousePressed
	case "up":
		eventType = input.MouseReleased
	case "wheel":
		eventType = input.MouseWheel
	default:
		return nil, fmt.Errorf("unsupported mouse event %q", ev.Event)
	}

	x, y := vp.Clamp(ev.X, ev.Y)
	p := input.DispatchMouseEvent(eventType, x, y).
		WithModifiers(ev.Modifiers.mask())

	if eventType == input.MousePressed || eventType == input.MouseReleased {
		button, ok := mouseButtons[ev.Button]
		if !ok {
			button = input.Left
		}
		clicks := ev.ClickCount
		if clicks == 0 {
			clicks = 1
		}
		p = p.WithButton(button).WithClickCount(clicks)
	}
	if ev.Buttons != nil {
		p = p.WithButtons(*ev.Buttons)
	}
	if eventType == input.MouseWheel {
		p = p.WithDeltaX(ev.DeltaX).WithDeltaY(ev.DeltaY)
	}
	return p, nil
}

// keyAction translates a keyboard event into a CDP dispatch.
func (ev InputEvent) keyAction() (*input.DispatchKeyEventParams, error) {
	var eventType input.KeyType
	switch ev.Event {
	case "down":
		eventType = input.KeyDown
	case "up":
		eventType = input.KeyUp
	case "char":
		eventType = input.KeyChar
	default:
		return nil, fmt.Errorf("unsupported keyboard event %q", ev.Event)
	}

	text := ev.Text
	if text == "" && ev.IsText && len(ev.Key) == 1 {
		text = ev.Key
	}
	unmodified := ev.UnmodifiedText
	if unmodified == "" {
		unmodified = text
	}

	return input.DispatchKeyEvent(eventType).
		WithKey(ev.Key).
		WithCode(ev.Code).
		WithText(text).
		WithUnmodifiedText(unmodified).
		WithWindowsVirtualKeyCode(ev.KeyCode).
		WithNativeVirtualKeyCode(ev.KeyCode).
		WithModifiers(ev.Modifiers.mask()).
		WithAutoRepeat(ev.Repeat), nil
}

// scrollAction translates a scroll event into a CDP wheel dispatch.
func (ev InputEvent) scrollAction(vp Viewport) *input.DispatchMouseEventParams {
	x, y := vp.Clamp(ev.X, ev.Y)
	return input.DispatchMouseEvent(input.MouseWheel, x, y).
		WithDeltaX(ev.DeltaX).
		WithDeltaY(ev.DeltaY).
		WithModifiers(ev.Modifiers.mask())
}
