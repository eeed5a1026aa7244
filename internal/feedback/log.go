package feedback

import (
	"github.com/dimfu/clack/v2/internal/logx"
	"github.com/dimfu/clack/v2/internal/metronome"
)

// Log is the headless display: every pulse becomes a log line.
type Log struct {
	log logx.Logger
}

func NewLog(log logx.Logger) *Log { return &Log{log: log} }

func (l *Log) Pulse(b metronome.Beat) {
	l.log.Info("beat", logx.Int("step", b.Step), logx.String("accent", b.Accent().String()))
}

func (l *Log) Clear() { l.log.Debug("pulse cleared") }

func (l *Log) SetStatus(s Status) {
	l.log.Debug("status",
		logx.Int("bpm", s.Tempo),
		logx.String("signature", s.Signature.Name),
		logx.String("profile", s.Profile),
		logx.Bool("running", s.Running),
	)
}

// Advisories are already logged by the bus.
func (l *Log) Notice(string) {}

func (l *Log) Prompt(string, bool) {}

func (l *Log) Close() {}
