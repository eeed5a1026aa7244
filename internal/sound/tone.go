package sound

import (
	"math"
	"time"

	"github.com/faiface/beep"

	"github.com/dimfu/clack/v2/internal/metronome"
)

// Tone is a plain sine beep.
type Tone struct {
	Freq     float64
	Gain     float64
	Duration time.Duration
}

const toneDuration = 200 * time.Millisecond

// ToneFor picks the fallback tone for a beat.
func ToneFor(b metronome.Beat) Tone {
	t := Tone{Freq: 880, Gain: 0.4, Duration: toneDuration}
	switch {
	case b.First:
		t.Freq, t.Gain = 659.25, 0.5
	case b.Weak:
		t.Freq = 330
	}
	return t
}

// Streamer renders the tone once at rate.
func (t Tone) Streamer(rate beep.SampleRate) beep.Streamer {
	total := rate.N(t.Duration)
	step := 2 * math.Pi * t.Freq / float64(rate)
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if pos >= total {
			return 0, false
		}
		for i := range samples {
			if pos >= total {
				break
			}
			v := t.Gain * math.Sin(step*float64(pos))
			samples[i][0], samples[i][1] = v, v
			pos++
			n++
		}
		return n, true
	})
}
