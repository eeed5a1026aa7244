package metronome

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dimfu/clack/v2/internal/logx"
)

// Sounder turns a classified beat into audio. It must not block.
type Sounder interface {
	Sound(b Beat)
}

// Pulser shows a classified beat. Clear drops any visible accent at once.
type Pulser interface {
	Pulse(b Beat)
	Clear()
}

// State is a point-in-time copy of the clock.
type State struct {
	Running   bool
	Step      int
	Tempo     int
	Signature Signature
}

// Clock drives the beat sequence. It owns the running flag, the current step
// and the single pending timer; nothing else mutates them.
//
// A tick runs with the clock locked, so Sounder and Pulser implementations
// must not call back into the Clock.
type Clock struct {
	mu    sync.Mutex
	sched Scheduler
	sound Sounder
	pulse Pulser
	log   logx.Logger

	tempo   int
	sig     Signature
	running bool
	step    int

	// next is the target time of the pending tick; ticks are scheduled
	// against it rather than against the moment a tick happened to run.
	next  time.Time
	timer Timer
	gen   uint64
}

type Option func(*Clock)

func WithScheduler(s Scheduler) Option {
	return func(c *Clock) { c.sched = s }
}

func WithLogger(log logx.Logger) Option {
	return func(c *Clock) { c.log = log }
}

func WithTempo(bpm int) Option {
	return func(c *Clock) { c.tempo = ClampTempo(bpm) }
}

func WithSignature(sig Signature) Option {
	return func(c *Clock) { c.sig = sig }
}

func NewClock(sound Sounder, pulse Pulser, opts ...Option) *Clock {
	c := &Clock{
		sched: RealTime,
		sound: sound,
		pulse: pulse,
		log:   logx.Nop(),
		tempo: DefaultTempo,
		sig:   Resolve(DefaultSignature),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sound == nil {
		c.sound = nopSounder{}
	}
	if c.pulse == nil {
		c.pulse = nopPulser{}
	}
	return c
}

type nopSounder struct{}

func (nopSounder) Sound(Beat) {}

type nopPulser struct{}

func (nopPulser) Pulse(Beat) {}
func (nopPulser) Clear()     {}

// Start plays step 0 right away and arms the next tick. It does nothing while
// already running.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.step = 0
	c.gen++
	c.next = c.sched.Now()
	c.log.Debug("clock started", logx.Int("bpm", c.tempo), logx.String("signature", c.sig.Name))
	c.tick(c.gen)
}

// Pause cancels the pending tick and clears the visual accent. A tick that is
// already running finishes but does not reschedule.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.safely("clear", c.pulse.Clear)
	c.log.Debug("clock paused", logx.Int("step", c.step))
}

// SetTempo stores the clamped tempo and returns it. The wait already in
// flight keeps its length; the new interval applies from the next tick.
func (c *Clock) SetTempo(bpm int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tempo = ClampTempo(bpm)
	return c.tempo
}

// SetSignature replaces the active signature. While stopped the measure
// restarts at step 0; while running the current step is kept and wraps on
// its own.
func (c *Clock) SetSignature(sig Signature) {
	if sig.Beats < 1 || sig.Subdivisions < 1 {
		sig = Resolve(sig.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sig = sig
	if !c.running {
		c.step = 0
	}
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Clock) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Running:   c.running,
		Step:      c.step,
		Tempo:     c.tempo,
		Signature: c.sig,
	}
}

func (c *Clock) fire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || gen != c.gen {
		return
	}
	c.tick(gen)
}

// tick must be called with c.mu held.
func (c *Clock) tick(gen uint64) {
	began := c.sched.Now()
	interval := Interval(c.tempo)
	if late := began.Sub(c.next); late > interval {
		c.log.Debug("clock fell behind; re-anchoring", logx.Duration("late", late))
		c.next = began
	}

	b := Classify(c.step, c.sig.Subdivisions)
	c.safely("sound", func() { c.sound.Sound(b) })
	c.safely("pulse", func() { c.pulse.Pulse(b) })
	c.step = (c.step + 1) % c.sig.TotalSteps()

	if !c.running || gen != c.gen {
		return
	}
	c.next = c.next.Add(interval)
	delay := c.next.Sub(c.sched.Now())
	if delay < 0 {
		delay = 0
	}
	c.timer = c.sched.AfterFunc(delay, func() { c.fire(gen) })
}

func (c *Clock) safely(stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("beat dispatch panicked",
				logx.String("stage", stage),
				logx.String("panic", fmt.Sprint(r)),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn()
}
