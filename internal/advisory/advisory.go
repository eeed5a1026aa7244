// Package advisory carries non-blocking, user-visible status messages (asset
// loading, audio device trouble, rejected input). Advisories never alter the
// beat sequence.
package advisory

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/dimfu/clack/v2/internal/logx"
)

type Kind int

const (
	LoadStart Kind = iota
	LoadSuccess
	LoadFailure
	AudioUnavailable
	AudioResumeFailure
	InvalidTempo
)

func (k Kind) String() string {
	switch k {
	case LoadStart:
		return "load-start"
	case LoadSuccess:
		return "load-success"
	case LoadFailure:
		return "load-failure"
	case AudioUnavailable:
		return "audio-unavailable"
	case AudioResumeFailure:
		return "audio-resume-failure"
	case InvalidTempo:
		return "invalid-tempo"
	default:
		return "unknown"
	}
}

type Advisory struct {
	Kind    Kind
	Message string
	Err     error
	Time    time.Time
}

type Notifier interface {
	Notify(a Advisory)
}

// Discard drops every advisory.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Advisory) {}

// Func adapts a plain function to Notifier.
type Func func(Advisory)

func (f Func) Notify(a Advisory) { f(a) }

// Bus fans advisories out to subscribers.
//
// Contract:
//   - Notify never blocks.
//   - Slow subscribers drop advisories.
//   - Throttled kinds are dropped (and only logged at debug) while their
//     limiter is exhausted.
type Bus struct {
	log logx.Logger

	mu   sync.RWMutex
	subs map[uint64]chan Advisory
	seq  atomic.Uint64

	limiters map[Kind]*rate.Limiter
}

type Option func(*Bus)

func WithLogger(log logx.Logger) Option {
	return func(b *Bus) { b.log = log }
}

// WithThrottle lets at most one advisory of kind through per interval.
func WithThrottle(kind Kind, every time.Duration) Option {
	return func(b *Bus) {
		b.limiters[kind] = rate.NewLimiter(rate.Every(every), 1)
	}
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{
		log:      logx.Nop(),
		subs:     map[uint64]chan Advisory{},
		limiters: map[Kind]*rate.Limiter{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Notify(a Advisory) {
	if a.Time.IsZero() {
		a.Time = time.Now()
	}
	if lim, ok := b.limiters[a.Kind]; ok && !lim.AllowN(a.Time, 1) {
		b.log.Debug("advisory throttled", logx.String("kind", a.Kind.String()), logx.String("msg", a.Message))
		return
	}
	b.logAdvisory(a)

	b.mu.RLock()
	chs := make([]chan Advisory, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		func() {
			// a concurrent unsubscribe may have closed ch
			defer func() { _ = recover() }()
			select {
			case ch <- a:
			default:
			}
		}()
	}
}

func (b *Bus) logAdvisory(a Advisory) {
	fields := []logx.Field{logx.String("kind", a.Kind.String()), logx.Err(a.Err)}
	switch a.Kind {
	case LoadFailure, AudioUnavailable, AudioResumeFailure:
		b.log.Warn(a.Message, fields...)
	default:
		b.log.Info(a.Message, fields...)
	}
}

// Subscribe returns a buffered channel of advisories and a func that
// unsubscribes and closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Advisory, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Advisory, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}
