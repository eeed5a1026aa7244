package feedback

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gosuri/uilive"

	"github.com/dimfu/clack/v2/internal/metronome"
)

const noticeTimeout = 2 * time.Second

// Terminal redraws a single status line in place.
type Terminal struct {
	w     *uilive.Writer
	sched metronome.Scheduler

	mu      sync.Mutex
	status  Status
	step    int
	tier    Tier
	fade    metronome.Timer
	fadeGen uint64

	notice      string
	noticeTimer metronome.Timer
	noticeGen   uint64

	prompt   string
	prompted bool
	closed   bool
}

func NewTerminal(out io.Writer, sched metronome.Scheduler) *Terminal {
	if sched == nil {
		sched = metronome.RealTime
	}
	w := uilive.New()
	w.Out = out
	return &Terminal{w: w, sched: sched, step: -1}
}

func (t *Terminal) Pulse(b metronome.Beat) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step = b.Step
	t.tier = TierOf(b)
	t.stopFade()
	if d := t.tier.Decay(); d > 0 {
		gen := t.fadeGen
		t.fade = t.sched.AfterFunc(d, func() { t.expireAccent(gen) })
	}
	t.render()
}

// Clear drops the accent and the step cursor without waiting for the decay.
func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopFade()
	t.tier = TierNone
	t.step = -1
	t.render()
}

func (t *Terminal) SetStatus(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
	t.render()
}

// Notice shows msg for a short while.
func (t *Terminal) Notice(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notice = msg
	if t.noticeTimer != nil {
		t.noticeTimer.Stop()
	}
	t.noticeGen++
	gen := t.noticeGen
	t.noticeTimer = t.sched.AfterFunc(noticeTimeout, func() { t.expireNotice(gen) })
	t.render()
}

func (t *Terminal) Prompt(text string, active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prompt, t.prompted = text, active
	t.render()
}

func (t *Terminal) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopFade()
	if t.noticeTimer != nil {
		t.noticeTimer.Stop()
	}
	t.closed = true
}

// Line returns the text the terminal currently shows.
func (t *Terminal) Line() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.line()
}

func (t *Terminal) expireAccent(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.fadeGen {
		return
	}
	t.tier = TierNone
	t.render()
}

func (t *Terminal) expireNotice(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.noticeGen {
		return
	}
	t.notice = ""
	t.render()
}

func (t *Terminal) stopFade() {
	t.fadeGen++
	if t.fade != nil {
		t.fade.Stop()
		t.fade = nil
	}
}

func (t *Terminal) render() {
	if t.closed {
		return
	}
	// raw-mode terminals need the carriage return
	fmt.Fprintf(t.w, "\r%s\n", t.line())
	_ = t.w.Flush()
}

func (t *Terminal) line() string {
	s := t.status
	var b strings.Builder
	if s.Running {
		b.WriteString("▶ ")
	} else {
		b.WriteString("■ ")
	}
	fmt.Fprintf(&b, "%3d bpm  %-4s  %-10s ", s.Tempo, s.Signature.Name, s.Profile)
	b.WriteString(t.cells())
	if s.Loading {
		b.WriteString("  loading sounds")
	}
	if s.Audio != "" {
		b.WriteString("  audio " + s.Audio)
	}
	if t.prompted {
		b.WriteString("  tempo: " + t.prompt + "_")
	} else if t.notice != "" {
		b.WriteString("  " + t.notice)
	}
	return b.String()
}

func (t *Terminal) cells() string {
	sig := t.status.Signature
	total := sig.TotalSteps()
	if total <= 0 {
		return "[]"
	}
	cells := make([]string, total)
	for i := range cells {
		switch {
		case i == t.step && t.tier == TierFirst:
			cells[i] = "◆"
		case i == t.step && t.tier == TierMain:
			cells[i] = "●"
		case i == t.step:
			cells[i] = "•"
		case i%sig.Subdivisions == 0:
			cells[i] = "○"
		default:
			cells[i] = "·"
		}
	}
	return "[" + strings.Join(cells, " ") + "]"
}
