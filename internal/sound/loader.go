package sound

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/faiface/beep"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/dimfu/clack/v2/internal/advisory"
	"github.com/dimfu/clack/v2/internal/logx"
)

// Source names where a profile's asset lives.
type Source struct {
	Profile  string
	Location string
}

// Report summarizes one load batch.
type Report struct {
	Batch   string
	Loaded  []string
	Skipped []string
	Failed  map[string]error
	Bytes   int64
	Took    time.Duration
}

func (r Report) OK() bool { return len(r.Failed) == 0 }

// Loader fetches and decodes profile assets into a Bank in the background.
// Only one batch runs at a time.
type Loader struct {
	bank   *Bank
	fetch  Fetcher
	rate   beep.SampleRate
	notify advisory.Notifier
	log    logx.Logger

	mu      sync.Mutex
	sources []Source

	inFlight atomic.Bool
}

func NewLoader(bank *Bank, fetch Fetcher, rate beep.SampleRate, notify advisory.Notifier) *Loader {
	if notify == nil {
		notify = advisory.Discard
	}
	return &Loader{
		bank:   bank,
		fetch:  fetch,
		rate:   rate,
		notify: notify,
		log:    logx.Nop(),
	}
}

func (l *Loader) SetLogger(log logx.Logger) { l.log = log }

func (l *Loader) SetSources(sources []Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources = append([]Source(nil), sources...)
}

func (l *Loader) Sources() []Source {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Source(nil), l.sources...)
}

// Loading reports whether a batch is in flight.
func (l *Loader) Loading() bool { return l.inFlight.Load() }

// Preload loads every profile that is not in the bank yet. It returns
// started=false and does nothing while another batch is in flight. The
// channel receives exactly one Report and is then closed.
func (l *Loader) Preload(ctx context.Context) (<-chan Report, bool) {
	return l.start(ctx, false)
}

// Reload is Preload that fetches every profile again.
func (l *Loader) Reload(ctx context.Context) (<-chan Report, bool) {
	return l.start(ctx, true)
}

func (l *Loader) start(ctx context.Context, force bool) (<-chan Report, bool) {
	if !l.inFlight.CompareAndSwap(false, true) {
		l.log.Debug("asset load already in flight")
		return nil, false
	}
	sources := l.Sources()
	done := make(chan Report, 1)
	go func() {
		rep := l.load(ctx, sources, force)
		l.inFlight.Store(false)
		done <- rep
		close(done)
	}()
	return done, true
}

func (l *Loader) load(ctx context.Context, sources []Source, force bool) Report {
	began := time.Now()
	rep := Report{Batch: uuid.NewString(), Failed: map[string]error{}}
	log := l.log.With(logx.String("batch", rep.Batch))

	l.notify.Notify(advisory.Advisory{
		Kind:    advisory.LoadStart,
		Message: "loading beat sounds...",
	})

	for _, src := range sources {
		if !force && l.bank.Has(src.Profile) {
			rep.Skipped = append(rep.Skipped, src.Profile)
			continue
		}
		n, err := l.loadOne(ctx, src)
		if err != nil {
			rep.Failed[src.Profile] = err
			log.Warn("sound profile failed to load",
				logx.String("profile", src.Profile),
				logx.String("location", src.Location),
				logx.Err(err),
			)
			continue
		}
		rep.Loaded = append(rep.Loaded, src.Profile)
		rep.Bytes += n
		log.Debug("sound profile loaded",
			logx.String("profile", src.Profile),
			logx.String("size", humanize.Bytes(uint64(n))),
		)
	}
	rep.Took = time.Since(began)

	if rep.OK() {
		l.notify.Notify(advisory.Advisory{
			Kind:    advisory.LoadSuccess,
			Message: fmt.Sprintf("beat sounds loaded (%s)", humanize.Bytes(uint64(rep.Bytes))),
		})
	} else {
		l.notify.Notify(advisory.Advisory{
			Kind: advisory.LoadFailure,
			Message: fmt.Sprintf("%d of %d beat sounds failed to load, using synthesized tones",
				len(rep.Failed), len(sources)-len(rep.Skipped)),
			Err: firstError(rep.Failed),
		})
	}
	return rep
}

func (l *Loader) loadOne(ctx context.Context, src Source) (int64, error) {
	rc, err := l.fetch.Fetch(ctx, src.Location)
	if err != nil {
		return 0, err
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return 0, errors.Wrap(err, "read asset")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	buf, err := Decode(src.Location, memFile{bytes.NewReader(data)}, l.rate)
	if err != nil {
		return 0, err
	}
	l.bank.Put(src.Profile, buf)
	return int64(len(data)), nil
}

// memFile keeps the reader seekable so decoders that can seek will.
type memFile struct{ *bytes.Reader }

func (memFile) Close() error { return nil }

func firstError(errs map[string]error) error {
	for _, err := range errs {
		return err
	}
	return nil
}
