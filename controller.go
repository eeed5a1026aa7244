package main

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dimfu/clack/v2/internal/advisory"
	"github.com/dimfu/clack/v2/internal/feedback"
	"github.com/dimfu/clack/v2/internal/logx"
	"github.com/dimfu/clack/v2/internal/metronome"
	"github.com/dimfu/clack/v2/internal/sound"
)

type Deps struct {
	Output  *sound.Output
	Bank    *sound.Bank
	Loader  *sound.Loader
	Display feedback.Display
	Notify  advisory.Notifier
	Log     logx.Logger

	// Scheduler drives the clock and the idle release. Defaults to real time.
	Scheduler metronome.Scheduler

	Tempo       int
	Signature   string
	Profile     string
	Profiles    []string
	IdleRelease time.Duration
}

// Controller is the only input surface of the metronome: keys, flags and
// config reloads all go through it.
type Controller struct {
	clock   *metronome.Clock
	engine  *sound.Engine
	out     *sound.Output
	loader  *sound.Loader
	display feedback.Display
	notify  advisory.Notifier
	log     logx.Logger
	sched   metronome.Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	playing atomic.Bool

	mu          sync.Mutex
	status      feedback.Status
	profiles    []string
	idleRelease time.Duration
	idleTimer   metronome.Timer
	idleGen     uint64
	closed      bool
}

func NewController(d Deps) *Controller {
	if d.Notify == nil {
		d.Notify = advisory.Discard
	}
	if d.Scheduler == nil {
		d.Scheduler = metronome.RealTime
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Profile == "" {
		d.Profile = DEFAULT_PROFILE
	}

	sig := metronome.Resolve(d.Signature)
	tempo := metronome.ClampTempo(d.Tempo)
	if d.Tempo == 0 {
		tempo = metronome.DefaultTempo
	}

	engine := sound.NewEngine(d.Output, d.Bank, d.Profile)
	engine.SetLogger(d.Log.With(logx.String("component", "engine")))

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		engine:      engine,
		out:         d.Output,
		loader:      d.Loader,
		display:     d.Display,
		notify:      d.Notify,
		log:         d.Log,
		sched:       d.Scheduler,
		ctx:         ctx,
		cancel:      cancel,
		idleRelease: d.IdleRelease,
		status: feedback.Status{
			Tempo:     tempo,
			Signature: sig,
			Profile:   d.Profile,
			Audio:     d.Output.State().String(),
		},
	}
	c.setProfiles(d.Profiles)
	c.clock = metronome.NewClock(engine, d.Display,
		metronome.WithScheduler(d.Scheduler),
		metronome.WithLogger(d.Log.With(logx.String("component", "clock"))),
		metronome.WithTempo(tempo),
		metronome.WithSignature(sig),
	)
	d.Output.OnStateChange(c.onOutputState)
	c.pushStatus()
	return c
}

// Start resumes the audio output if needed and starts the beat. A failed
// resume does not stop the beat; it keeps going silently.
func (c *Controller) Start() {
	if c.isClosed() {
		return
	}
	c.cancelIdle()
	c.playing.Store(true)
	c.wake()
	c.clock.Start()
	c.update(func(s *feedback.Status) { s.Running = true })
}

func (c *Controller) Pause() {
	c.playing.Store(false)
	c.clock.Pause()
	c.update(func(s *feedback.Status) { s.Running = false })
	c.armIdle()
}

func (c *Controller) Toggle() {
	if c.clock.Running() {
		c.Pause()
		return
	}
	c.Start()
}

// SetTempo parses raw user input. Input without a number leaves the tempo
// untouched, raises an advisory and returns the error.
func (c *Controller) SetTempo(raw string) (int, error) {
	bpm, err := metronome.ParseTempo(raw)
	if err != nil {
		c.notify.Notify(advisory.Advisory{
			Kind:    advisory.InvalidTempo,
			Message: "tempo must be a number",
			Err:     err,
		})
		return c.Tempo(), err
	}
	return c.applyTempo(bpm), nil
}

func (c *Controller) NudgeTempo(delta int) int {
	return c.applyTempo(c.Tempo() + delta)
}

func (c *Controller) applyTempo(bpm int) int {
	bpm = c.clock.SetTempo(bpm)
	c.update(func(s *feedback.Status) { s.Tempo = bpm })
	return bpm
}

func (c *Controller) Tempo() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.Tempo
}

// SetSignature switches to name, or to 4/4 when name is unknown.
func (c *Controller) SetSignature(name string) metronome.Signature {
	sig := metronome.Resolve(name)
	c.clock.SetSignature(sig)
	c.update(func(s *feedback.Status) { s.Signature = sig })
	return sig
}

func (c *Controller) CycleSignature() metronome.Signature {
	c.mu.Lock()
	cur := c.status.Signature.Name
	c.mu.Unlock()
	return c.SetSignature(next(metronome.Names(), cur))
}

// SetSoundProfile selects the sample set for the following beats. A profile
// without a loaded sample plays synthesized tones.
func (c *Controller) SetSoundProfile(name string) {
	c.engine.SetProfile(name)
	c.update(func(s *feedback.Status) { s.Profile = name })
}

func (c *Controller) CycleSoundProfile() string {
	c.mu.Lock()
	profiles := c.profiles
	cur := c.status.Profile
	c.mu.Unlock()
	if len(profiles) == 0 {
		return cur
	}
	name := next(profiles, cur)
	c.SetSoundProfile(name)
	return name
}

// Interact is called on every user input. It retries a suspended output.
func (c *Controller) Interact() {
	if c.out.State() != sound.StateSuspended {
		return
	}
	c.resume()
	if !c.playing.Load() {
		c.armIdle()
	}
}

func (c *Controller) Snapshot() metronome.State {
	return c.clock.Snapshot()
}

func (c *Controller) Status() feedback.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Preload starts loading every profile that has no sample yet.
func (c *Controller) Preload() (<-chan sound.Report, bool) {
	return c.track(c.loader.Preload(c.ctx))
}

// ReloadSounds fetches every profile again.
func (c *Controller) ReloadSounds() (<-chan sound.Report, bool) {
	return c.track(c.loader.Reload(c.ctx))
}

// ApplyConfig takes the parts of a reloaded config that can change at
// runtime: sound sources and the profile list.
func (c *Controller) ApplyConfig(cfg *Config) (<-chan sound.Report, bool) {
	c.loader.SetSources(cfg.Sources())
	c.setProfiles(cfg.Profiles())
	if d, err := cfg.IdleRelease(); err == nil {
		c.mu.Lock()
		c.idleRelease = d
		c.mu.Unlock()
	}
	return c.ReloadSounds()
}

func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.cancelIdle()
	c.playing.Store(false)
	c.clock.Pause()
	c.display.Close()
	c.out.Close()
}

func (c *Controller) track(reports <-chan sound.Report, started bool) (<-chan sound.Report, bool) {
	if !started {
		return nil, false
	}
	c.update(func(s *feedback.Status) { s.Loading = true })
	out := make(chan sound.Report, 1)
	go func() {
		defer close(out)
		rep, ok := <-reports
		c.update(func(s *feedback.Status) { s.Loading = c.loader.Loading() })
		if ok {
			c.log.Debug("sound load finished",
				logx.String("batch", rep.Batch),
				logx.Strings("loaded", rep.Loaded),
				logx.Int("failed", len(rep.Failed)),
			)
			out <- rep
		}
	}()
	return out, true
}

// wake makes sure the output is usable before the first beat.
func (c *Controller) wake() {
	switch c.out.State() {
	case sound.StateIdle:
		// failure raises its own advisory
		_ = c.out.Ensure()
	case sound.StateSuspended:
		c.resume()
	}
}

func (c *Controller) resume() {
	if err := c.out.Resume(); err != nil {
		c.notify.Notify(advisory.Advisory{
			Kind:    advisory.AudioResumeFailure,
			Message: "audio is suspended, press any key to resume",
			Err:     err,
		})
	}
}

// onOutputState must not touch the clock: it can run inside a tick.
func (c *Controller) onOutputState(st sound.State) {
	c.update(func(s *feedback.Status) { s.Audio = st.String() })
	if st == sound.StateSuspended && c.playing.Load() && !c.isClosed() {
		c.log.Debug("audio suspended while playing, resuming")
		c.resume()
	}
}

func (c *Controller) armIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopIdleLocked()
	if c.idleRelease <= 0 || c.closed {
		return
	}
	gen := c.idleGen
	c.idleTimer = c.sched.AfterFunc(c.idleRelease, func() { c.releaseIdle(gen) })
}

func (c *Controller) cancelIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopIdleLocked()
}

func (c *Controller) stopIdleLocked() {
	c.idleGen++
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
}

func (c *Controller) releaseIdle(gen uint64) {
	c.mu.Lock()
	stale := gen != c.idleGen || c.closed
	if !stale {
		c.idleTimer = nil
	}
	c.mu.Unlock()
	if stale || c.playing.Load() {
		return
	}
	c.log.Debug("releasing idle audio output")
	c.out.Suspend()
}

func (c *Controller) setProfiles(profiles []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles = append([]string(nil), profiles...)
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// update runs fn on the status mirror and pushes the result. The display is
// called with mu held so updates arrive in order.
func (c *Controller) update(fn func(s *feedback.Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.status)
	c.display.SetStatus(c.status)
}

func (c *Controller) pushStatus() {
	c.update(func(*feedback.Status) {})
}

// next returns the item after cur, wrapping around. An unknown cur yields the
// first item.
func next(items []string, cur string) string {
	i := slices.Index(items, cur)
	return items[(i+1)%len(items)]
}
