package sound

import (
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"

	"github.com/dimfu/clack/v2/internal/logx"
	"github.com/dimfu/clack/v2/internal/metronome"
)

// SampleGain is the playback gain of a loaded sample for a beat.
func SampleGain(b metronome.Beat) float64 {
	switch {
	case b.First:
		return 1.0
	case b.Weak:
		return 0.5
	default:
		return 0.8
	}
}

type voiceKind int

const (
	voiceTone voiceKind = iota
	voiceSample
)

func (k voiceKind) String() string {
	if k == voiceSample {
		return "sample"
	}
	return "tone"
}

// voice is what one beat sounds like: either the profile's sample at a gain
// or the synthesized fallback tone.
type voice struct {
	kind   voiceKind
	sample *beep.Buffer
	gain   float64
	tone   Tone
}

func (v voice) streamer(rate beep.SampleRate) beep.Streamer {
	switch v.kind {
	case voiceSample:
		return &effects.Gain{
			Streamer: v.sample.Streamer(0, v.sample.Len()),
			Gain:     v.gain - 1,
		}
	default:
		return v.tone.Streamer(rate)
	}
}

// Engine plays one sound per beat for the selected profile.
type Engine struct {
	out  *Output
	bank *Bank
	log  logx.Logger

	mu      sync.RWMutex
	profile string
}

func NewEngine(out *Output, bank *Bank, profile string) *Engine {
	return &Engine{out: out, bank: bank, profile: profile, log: logx.Nop()}
}

func (e *Engine) SetLogger(log logx.Logger) { e.log = log }

func (e *Engine) SetProfile(profile string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profile = profile
}

func (e *Engine) Profile() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.profile
}

// Sound plays b with the selected profile.
func (e *Engine) Sound(b metronome.Beat) {
	e.Play(b, e.Profile())
}

// Play starts exactly one sound for b and returns without waiting for it.
// Playback problems are logged and swallowed.
func (e *Engine) Play(b metronome.Beat, profile string) {
	v := e.voiceFor(b, profile)
	if err := e.out.Play(v.streamer(e.out.SampleRate())); err != nil {
		e.log.Debug("beat not played",
			logx.Int("step", b.Step),
			logx.String("voice", v.kind.String()),
			logx.Err(err),
		)
	}
}

func (e *Engine) voiceFor(b metronome.Beat, profile string) voice {
	if buf, ok := e.bank.Get(profile); ok && buf.Len() > 0 {
		return voice{kind: voiceSample, sample: buf, gain: SampleGain(b)}
	}
	return voice{kind: voiceTone, tone: ToneFor(b)}
}
