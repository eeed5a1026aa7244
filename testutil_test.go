package main

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/pkg/errors"

	"github.com/dimfu/clack/v2/internal/advisory"
	"github.com/dimfu/clack/v2/internal/feedback"
	"github.com/dimfu/clack/v2/internal/metronome"
	"github.com/dimfu/clack/v2/internal/sound"
)

type fakeTimer struct {
	s       *fakeScheduler
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeScheduler only fires timers from Advance.
type fakeScheduler struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *fakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) metronome.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, at: s.now.Add(d), f: f}
	s.pending = append(s.pending, t)
	return t
}

func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()
	for {
		s.mu.Lock()
		idx := -1
		for i, t := range s.pending {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if idx < 0 || t.at.Before(s.pending[idx].at) {
				idx = i
			}
		}
		if idx < 0 {
			s.now = target
			s.mu.Unlock()
			return
		}
		t := s.pending[idx]
		s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
		t.fired = true
		if t.at.After(s.now) {
			s.now = t.at
		}
		s.mu.Unlock()
		t.f()
	}
}

type fakeBackend struct {
	mu      sync.Mutex
	inits   int
	closes  int
	plays   int
	initErr error
}

func (f *fakeBackend) Init(beep.SampleRate, int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return f.initErr
}

func (f *fakeBackend) Play(...beep.Streamer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
}

func (f *fakeBackend) Clear() {}

func (f *fakeBackend) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

func (f *fakeBackend) setInitErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initErr = err
}

func (f *fakeBackend) counts() (inits, closes, plays int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inits, f.closes, f.plays
}

var errNoDevice = errors.New("no audio device")

// recDisplay records everything the controller and clock show.
type recDisplay struct {
	mu       sync.Mutex
	pulses   []metronome.Beat
	clears   int
	status   feedback.Status
	notices  []string
	prompt   string
	prompted bool
	closed   bool
}

func (d *recDisplay) Pulse(b metronome.Beat) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pulses = append(d.pulses, b)
}

func (d *recDisplay) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clears++
}

func (d *recDisplay) SetStatus(s feedback.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = s
}

func (d *recDisplay) Notice(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, msg)
}

func (d *recDisplay) Prompt(text string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prompt, d.prompted = text, active
}

func (d *recDisplay) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *recDisplay) lastStatus() feedback.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *recDisplay) beats() []metronome.Beat {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]metronome.Beat(nil), d.pulses...)
}

type collector struct {
	mu  sync.Mutex
	got []advisory.Advisory
}

func (c *collector) Notify(a advisory.Advisory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, a)
}

func (c *collector) count(kind advisory.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, a := range c.got {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

type fetchFunc func(ctx context.Context, location string) (io.ReadCloser, error)

func (f fetchFunc) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	return f(ctx, location)
}

type harness struct {
	ctrl    *Controller
	sched   *fakeScheduler
	backend *fakeBackend
	display *recDisplay
	notes   *collector
	out     *sound.Output
	loader  *sound.Loader
}

func newHarness(t *testing.T, mutate func(d *Deps)) *harness {
	t.Helper()
	h := &harness{
		sched:   newFakeScheduler(),
		backend: &fakeBackend{},
		display: &recDisplay{},
		notes:   &collector{},
	}
	h.out = sound.NewOutput(h.backend, beep.SampleRate(44100), 0, h.notes)
	bank := sound.NewBank()
	h.loader = sound.NewLoader(bank, fetchFunc(func(context.Context, string) (io.ReadCloser, error) {
		return nil, errors.New("not found")
	}), beep.SampleRate(44100), h.notes)

	d := Deps{
		Output:      h.out,
		Bank:        bank,
		Loader:      h.loader,
		Display:     h.display,
		Notify:      h.notes,
		Scheduler:   h.sched,
		Tempo:       120,
		Signature:   "4/4",
		Profile:     "wood",
		Profiles:    []string{"drum", "electronic", "wood"},
		IdleRelease: 10 * time.Second,
	}
	if mutate != nil {
		mutate(&d)
	}
	h.ctrl = NewController(d)
	t.Cleanup(h.ctrl.Close)
	return h
}
