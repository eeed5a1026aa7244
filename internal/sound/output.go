package sound

import (
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/pkg/errors"

	"github.com/dimfu/clack/v2/internal/advisory"
	"github.com/dimfu/clack/v2/internal/logx"
)

var (
	ErrSuspended   = errors.New("audio output suspended")
	ErrUnavailable = errors.New("audio output unavailable")
)

type State int

const (
	StateIdle State = iota
	StateActive
	StateSuspended
	StateUnavailable
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateSuspended:
		return "suspended"
	case StateUnavailable:
		return "unavailable"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Backend is the platform audio device.
type Backend interface {
	Init(rate beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Clear()
	Close()
}

// Speaker plays through the system audio device.
var Speaker Backend = speakerBackend{}

type speakerBackend struct{}

func (speakerBackend) Init(rate beep.SampleRate, bufferSize int) error {
	return speaker.Init(rate, bufferSize)
}
func (speakerBackend) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (speakerBackend) Clear()                  { speaker.Clear() }
func (speakerBackend) Close()                  { speaker.Close() }

// Output is the process-wide audio context. The device is opened on first use,
// can be suspended and resumed, and is marked unavailable for good if it
// cannot be opened at all.
type Output struct {
	backend Backend
	rate    beep.SampleRate
	buffer  time.Duration
	notify  advisory.Notifier
	log     logx.Logger

	// openMu serializes device (re)opening so Play never waits on it.
	openMu sync.Mutex

	mu        sync.Mutex
	state     State
	observers []func(State)
}

func NewOutput(backend Backend, rate beep.SampleRate, buffer time.Duration, notify advisory.Notifier) *Output {
	if notify == nil {
		notify = advisory.Discard
	}
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	return &Output{
		backend: backend,
		rate:    rate,
		buffer:  buffer,
		notify:  notify,
		log:     logx.Nop(),
	}
}

func (o *Output) SetLogger(log logx.Logger) { o.log = log }

func (o *Output) SampleRate() beep.SampleRate { return o.rate }

func (o *Output) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// OnStateChange registers fn to run after every state transition. fn runs on
// the goroutine that caused the transition, without locks held.
func (o *Output) OnStateChange(fn func(State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

// Ensure opens the device if it has never been opened.
func (o *Output) Ensure() error {
	o.openMu.Lock()
	fire, err := o.ensureLocked()
	o.openMu.Unlock()
	fire()
	return err
}

func (o *Output) ensureLocked() (func(), error) {
	switch o.State() {
	case StateActive:
		return nop, nil
	case StateSuspended:
		return nop, ErrSuspended
	case StateUnavailable, StateClosed:
		return nop, ErrUnavailable
	}

	if err := o.open(); err != nil {
		fire := o.setState(StateUnavailable)
		o.notify.Notify(advisory.Advisory{
			Kind:    advisory.AudioUnavailable,
			Message: "audio playback is not supported on this system",
			Err:     err,
		})
		return fire, errors.Wrap(ErrUnavailable, err.Error())
	}
	return o.setState(StateActive), nil
}

// Resume reopens a suspended device. A failed attempt leaves the output
// suspended so a later interaction can retry.
func (o *Output) Resume() error {
	o.openMu.Lock()
	fire, err := o.resumeLocked()
	o.openMu.Unlock()
	fire()
	return err
}

func (o *Output) resumeLocked() (func(), error) {
	switch o.State() {
	case StateActive:
		return nop, nil
	case StateUnavailable, StateClosed:
		return nop, ErrUnavailable
	case StateIdle:
		return o.ensureLocked()
	}
	if err := o.open(); err != nil {
		return nop, errors.Wrap(err, "resume audio output")
	}
	return o.setState(StateActive), nil
}

// Suspend releases the device. Sounds requested while suspended are dropped.
func (o *Output) Suspend() {
	o.openMu.Lock()
	fire := nop
	if o.State() == StateActive {
		o.release()
		fire = o.setState(StateSuspended)
	}
	o.openMu.Unlock()
	fire()
}

// Play starts s and returns immediately.
func (o *Output) Play(s beep.Streamer) (err error) {
	switch o.State() {
	case StateIdle:
		if err := o.Ensure(); err != nil {
			return err
		}
	case StateSuspended:
		return ErrSuspended
	case StateUnavailable, StateClosed:
		return ErrUnavailable
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("audio backend panic: %v", r)
		}
	}()
	o.backend.Play(s)
	return nil
}

func (o *Output) Close() {
	o.openMu.Lock()
	if o.State() == StateActive {
		o.release()
	}
	fire := o.setState(StateClosed)
	o.openMu.Unlock()
	fire()
}

func (o *Output) open() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("audio backend panic: %v", r)
		}
	}()
	return o.backend.Init(o.rate, o.rate.N(o.buffer))
}

func (o *Output) release() {
	defer func() {
		if r := recover(); r != nil {
			o.log.Warn("audio backend panic on release", logx.Any("panic", r))
		}
	}()
	o.backend.Clear()
	o.backend.Close()
}

func nop() {}

// setState records the new state and returns a func that notifies observers;
// callers run it after releasing openMu so observers may call back in.
func (o *Output) setState(to State) func() {
	o.mu.Lock()
	from := o.state
	o.state = to
	observers := append(([]func(State))(nil), o.observers...)
	o.mu.Unlock()
	if from == to {
		return nop
	}
	o.log.Debug("audio output state changed", logx.String("from", from.String()), logx.String("to", to.String()))
	return func() {
		for _, fn := range observers {
			fn(to)
		}
	}
}
