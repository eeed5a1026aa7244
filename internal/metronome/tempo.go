package metronome

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	MinTempo     = 30
	MaxTempo     = 240
	DefaultTempo = 80
)

var ErrInvalidTempo = errors.New("tempo must be a number")

// ClampTempo keeps bpm inside [MinTempo, MaxTempo].
func ClampTempo(bpm int) int {
	return min(MaxTempo, max(MinTempo, bpm))
}

// ParseTempo reads the leading integer of raw user input ("96", " 120 ",
// "120.5"). The result is not clamped.
func ParseTempo(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, errors.Wrapf(ErrInvalidTempo, "parse %q", raw)
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// only overflow gets here
		if s[0] == '-' {
			return MinTempo, nil
		}
		return MaxTempo, nil
	}
	return n, nil
}

// Interval is the time between two steps at bpm.
func Interval(bpm int) time.Duration {
	return time.Minute / time.Duration(ClampTempo(bpm))
}
