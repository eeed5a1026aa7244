// Package feedback shows the visual side of each beat.
package feedback

import (
	"time"

	"github.com/dimfu/clack/v2/internal/metronome"
)

// Tier is the visual accent of a beat. Weak beats carry none.
type Tier int

const (
	TierNone Tier = iota
	TierMain
	TierFirst
)

func TierOf(b metronome.Beat) Tier {
	switch b.Accent() {
	case metronome.AccentFirst:
		return TierFirst
	case metronome.AccentMain:
		return TierMain
	default:
		return TierNone
	}
}

// Decay is how long the accent stays visible.
func (t Tier) Decay() time.Duration {
	switch t {
	case TierFirst:
		return 600 * time.Millisecond
	case TierMain:
		return 500 * time.Millisecond
	default:
		return 0
	}
}

// Status is the non-beat state shown next to the pulse.
type Status struct {
	Tempo     int
	Signature metronome.Signature
	Profile   string
	Running   bool
	Loading   bool
	Audio     string
}

// Display is a Pulser that also shows status, transient notices and the
// tempo entry prompt.
type Display interface {
	metronome.Pulser
	SetStatus(s Status)
	Notice(msg string)
	Prompt(text string, active bool)
	Close()
}
