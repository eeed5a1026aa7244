package main

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/dimfu/clack/v2/internal/advisory"
	"github.com/dimfu/clack/v2/internal/metronome"
	"github.com/dimfu/clack/v2/internal/sound"
)

func TestControllerStartOpensOutputAndBeats(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Start()

	inits, _, plays := h.backend.counts()
	if inits != 1 || plays != 1 {
		t.Fatalf("inits, plays = %d, %d, want 1, 1", inits, plays)
	}
	if got := h.display.beats(); len(got) != 1 || got[0].Step != 0 || !got[0].First {
		t.Fatalf("first pulse = %+v, want step 0 first beat", got)
	}
	st := h.display.lastStatus()
	if !st.Running || st.Audio != "active" || st.Tempo != 120 {
		t.Fatalf("status = %+v, want running, active, 120 bpm", st)
	}

	h.sched.Advance(1500 * time.Millisecond)
	if n := len(h.display.beats()); n != 4 {
		t.Fatalf("beats after 1.5s at 120 bpm = %d, want 4", n)
	}
}

func TestControllerToggle(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Toggle()
	if !h.ctrl.Snapshot().Running {
		t.Fatalf("toggle did not start")
	}
	h.ctrl.Toggle()
	if h.ctrl.Snapshot().Running || h.display.lastStatus().Running {
		t.Fatalf("toggle did not pause")
	}
}

func TestControllerIdleReleaseAndResume(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Start()
	h.ctrl.Pause()

	h.sched.Advance(9 * time.Second)
	if st := h.out.State(); st != sound.StateActive {
		t.Fatalf("state before idle release = %v, want active", st)
	}
	h.sched.Advance(time.Second)
	if st := h.out.State(); st != sound.StateSuspended {
		t.Fatalf("state after idle release = %v, want suspended", st)
	}
	if got := h.display.lastStatus().Audio; got != "suspended" {
		t.Fatalf("status audio = %q, want suspended", got)
	}

	h.ctrl.Start()
	inits, closes, _ := h.backend.counts()
	if inits != 2 || closes != 1 {
		t.Fatalf("inits, closes = %d, %d, want 2, 1", inits, closes)
	}
	if st := h.out.State(); st != sound.StateActive {
		t.Fatalf("state after start = %v, want active", st)
	}
}

func TestControllerStartCancelsIdleRelease(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Start()
	h.ctrl.Pause()
	h.sched.Advance(5 * time.Second)
	h.ctrl.Start()
	h.sched.Advance(10 * time.Second)
	if st := h.out.State(); st != sound.StateActive {
		t.Fatalf("state = %v, want active while playing", st)
	}
}

func TestControllerFailedResumeKeepsBeating(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Start()
	h.ctrl.Pause()
	h.sched.Advance(10 * time.Second)
	h.backend.setInitErr(errNoDevice)

	h.ctrl.Start()
	if n := h.notes.count(advisory.AudioResumeFailure); n != 1 {
		t.Fatalf("resume failure advisories = %d, want 1", n)
	}
	if st := h.out.State(); st != sound.StateSuspended {
		t.Fatalf("state = %v, want still suspended", st)
	}
	before := len(h.display.beats())
	h.sched.Advance(time.Second)
	if after := len(h.display.beats()); after != before+2 {
		t.Fatalf("beats = %d, want %d", after, before+2)
	}

	h.backend.setInitErr(nil)
	h.ctrl.Interact()
	if st := h.out.State(); st != sound.StateActive {
		t.Fatalf("state after interaction = %v, want active", st)
	}
}

func TestControllerUnavailableOutput(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.setInitErr(errNoDevice)
	h.ctrl.Start()

	if n := h.notes.count(advisory.AudioUnavailable); n != 1 {
		t.Fatalf("unavailable advisories = %d, want 1", n)
	}
	h.sched.Advance(2 * time.Second)
	if n := len(h.display.beats()); n != 5 {
		t.Fatalf("beats = %d, want 5 without audio", n)
	}
	if inits, _, _ := h.backend.counts(); inits != 1 {
		t.Fatalf("inits = %d, want a single attempt", inits)
	}
}

func TestControllerResumesWhenSuspendedWhilePlaying(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Start()
	h.out.Suspend()
	if st := h.out.State(); st != sound.StateActive {
		t.Fatalf("state = %v, want resumed by the state observer", st)
	}
}

func TestControllerSetTempo(t *testing.T) {
	h := newHarness(t, nil)

	bpm, err := h.ctrl.SetTempo("abc")
	if !errors.Is(err, metronome.ErrInvalidTempo) {
		t.Fatalf("err = %v, want ErrInvalidTempo", err)
	}
	if bpm != 120 || h.ctrl.Snapshot().Tempo != 120 {
		t.Fatalf("tempo changed on invalid input: %d", bpm)
	}
	if n := h.notes.count(advisory.InvalidTempo); n != 1 {
		t.Fatalf("invalid tempo advisories = %d, want 1", n)
	}

	cases := []struct {
		raw  string
		want int
	}{
		{"96", 96},
		{" 100.7 ", 100},
		{"300", metronome.MaxTempo},
		{"5", metronome.MinTempo},
	}
	for _, tc := range cases {
		got, err := h.ctrl.SetTempo(tc.raw)
		if err != nil || got != tc.want {
			t.Fatalf("SetTempo(%q) = %d, %v, want %d", tc.raw, got, err, tc.want)
		}
		if st := h.display.lastStatus(); st.Tempo != tc.want {
			t.Fatalf("status tempo = %d, want %d", st.Tempo, tc.want)
		}
	}
}

func TestControllerNudgeTempoClamps(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Tempo = metronome.MaxTempo })
	if got := h.ctrl.NudgeTempo(1); got != metronome.MaxTempo {
		t.Fatalf("nudge above max = %d", got)
	}
	if got := h.ctrl.NudgeTempo(-1); got != metronome.MaxTempo-1 {
		t.Fatalf("nudge down = %d, want %d", got, metronome.MaxTempo-1)
	}
}

func TestControllerSignature(t *testing.T) {
	h := newHarness(t, nil)
	if got := h.ctrl.CycleSignature(); got.Name != "3/4" {
		t.Fatalf("cycle from 4/4 = %s, want 3/4", got)
	}
	if got := h.ctrl.SetSignature("7/8"); got.Name != "4/4" {
		t.Fatalf("unknown signature = %s, want 4/4", got)
	}
	h.ctrl.SetSignature("6/8")
	if st := h.ctrl.Snapshot(); st.Signature.TotalSteps() != 6 {
		t.Fatalf("6/8 steps = %d, want 6", st.Signature.TotalSteps())
	}
	if got := h.display.lastStatus().Signature.Name; got != "6/8" {
		t.Fatalf("status signature = %s, want 6/8", got)
	}
}

func TestControllerSoundProfile(t *testing.T) {
	h := newHarness(t, nil)
	if got := h.ctrl.CycleSoundProfile(); got != "drum" {
		t.Fatalf("cycle after wood = %q, want drum", got)
	}
	if got := h.ctrl.CycleSoundProfile(); got != "electronic" {
		t.Fatalf("cycle after drum = %q, want electronic", got)
	}
	h.ctrl.SetSoundProfile("custom")
	if got := h.display.lastStatus().Profile; got != "custom" {
		t.Fatalf("status profile = %q, want custom", got)
	}
}

func TestControllerPreloadFailureFallsBack(t *testing.T) {
	h := newHarness(t, nil)
	h.loader.SetSources([]sound.Source{{Profile: "wood", Location: "sounds/wood.mp3"}})

	reports, ok := h.ctrl.Preload()
	if !ok {
		t.Fatalf("preload did not start")
	}
	select {
	case rep := <-reports:
		if rep.OK() || rep.Failed["wood"] == nil {
			t.Fatalf("report = %+v, want wood failed", rep)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("preload did not finish")
	}
	if h.display.lastStatus().Loading {
		t.Fatalf("status still loading")
	}
	if n := h.notes.count(advisory.LoadFailure); n != 1 {
		t.Fatalf("load failure advisories = %d, want 1", n)
	}

	// synthesized tones still play
	h.ctrl.Start()
	if _, _, plays := h.backend.counts(); plays != 1 {
		t.Fatalf("plays = %d, want 1", plays)
	}
}

func TestControllerApplyConfig(t *testing.T) {
	h := newHarness(t, nil)
	cfg := DefaultConfig()
	cfg.Sounds = map[string]string{"click": "sounds/click.wav"}

	reports, ok := h.ctrl.ApplyConfig(cfg)
	if !ok {
		t.Fatalf("reload did not start")
	}
	<-reports
	if src := h.loader.Sources(); len(src) != 1 || src[0].Profile != "click" {
		t.Fatalf("sources = %+v, want click only", src)
	}
	if got := h.ctrl.CycleSoundProfile(); got != "click" {
		t.Fatalf("profiles not replaced, cycled to %q", got)
	}
}

func TestControllerClose(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Start()
	h.ctrl.Close()

	if h.ctrl.Snapshot().Running {
		t.Fatalf("clock still running after close")
	}
	if st := h.out.State(); st != sound.StateClosed {
		t.Fatalf("state = %v, want closed", st)
	}
	h.ctrl.Start()
	if h.ctrl.Snapshot().Running {
		t.Fatalf("start after close restarted the clock")
	}
	h.ctrl.Close()
}
