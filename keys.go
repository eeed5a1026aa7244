package main

import (
	"github.com/eiannone/keyboard"

	"github.com/dimfu/clack/v2/internal/feedback"
)

// keyHandler turns key presses into controller calls. It owns the tempo
// entry buffer while the prompt is open.
type keyHandler struct {
	ctrl    *Controller
	display feedback.Display

	entering bool
	entry    []rune
}

func newKeyHandler(ctrl *Controller, display feedback.Display) *keyHandler {
	return &keyHandler{ctrl: ctrl, display: display}
}

// handle applies one key event and reports whether the user asked to quit.
func (h *keyHandler) handle(ev keyboard.KeyEvent) (quit bool) {
	h.ctrl.Interact()

	if ev.Key == keyboard.KeyCtrlC {
		return true
	}
	if h.entering {
		h.handleEntry(ev)
		return false
	}

	switch ev.Key {
	case keyboard.KeySpace, keyboard.KeyEnter:
		h.ctrl.Toggle()
		return false
	case keyboard.KeyArrowUp, keyboard.KeyArrowRight:
		h.ctrl.NudgeTempo(1)
		return false
	case keyboard.KeyArrowDown, keyboard.KeyArrowLeft:
		h.ctrl.NudgeTempo(-1)
		return false
	case keyboard.KeyEsc:
		return true
	}

	switch ev.Rune {
	case ' ':
		h.ctrl.Toggle()
	case '+', '=':
		h.ctrl.NudgeTempo(1)
	case '-', '_':
		h.ctrl.NudgeTempo(-1)
	case 't', 'T':
		h.entering = true
		h.entry = h.entry[:0]
		h.display.Prompt("", true)
	case 's', 'S':
		h.ctrl.CycleSignature()
	case 'p', 'P':
		h.ctrl.CycleSoundProfile()
	case 'r', 'R':
		h.ctrl.ReloadSounds()
	case 'q', 'Q':
		return true
	}
	return false
}

func (h *keyHandler) handleEntry(ev keyboard.KeyEvent) {
	switch ev.Key {
	case keyboard.KeyEnter:
		// invalid input raises its own advisory
		_, _ = h.ctrl.SetTempo(string(h.entry))
		h.closeEntry()
		return
	case keyboard.KeyEsc:
		h.closeEntry()
		return
	case keyboard.KeyBackspace, keyboard.KeyBackspace2:
		if n := len(h.entry); n > 0 {
			h.entry = h.entry[:n-1]
		}
	case keyboard.KeySpace:
		h.entry = append(h.entry, ' ')
	default:
		if ev.Rune != 0 && len(h.entry) < 8 {
			h.entry = append(h.entry, ev.Rune)
		}
	}
	h.display.Prompt(string(h.entry), true)
}

func (h *keyHandler) closeEntry() {
	h.entering = false
	h.entry = h.entry[:0]
	h.display.Prompt("", false)
}
