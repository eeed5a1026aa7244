package metronome

import "strings"

// Signature describes how one measure is split into steps. Beats is the number
// of main beats per measure and Subdivisions the number of steps per beat.
type Signature struct {
	Name         string
	Beats        int
	Subdivisions int
}

// TotalSteps is the number of steps in one measure.
func (s Signature) TotalSteps() int {
	return s.Beats * s.Subdivisions
}

func (s Signature) String() string { return s.Name }

const DefaultSignature = "4/4"

// compound meters (x/8, 6/4) count in dotted beats of three subdivisions
var signatures = []Signature{
	{"4/4", 4, 1},
	{"3/4", 3, 1},
	{"6/8", 2, 3},
	{"2/4", 2, 1},
	{"5/4", 5, 1},
	{"2/2", 2, 1},
	{"3/8", 1, 3},
	{"9/8", 3, 3},
	{"12/8", 4, 3},
	{"6/4", 2, 3},
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Signature, bool) {
	name = strings.TrimSpace(name)
	for _, s := range signatures {
		if s.Name == name {
			return s, true
		}
	}
	return Signature{}, false
}

// Resolve maps a signature name to its catalog entry, falling back to 4/4 for
// anything unknown.
func Resolve(name string) Signature {
	if s, ok := Lookup(name); ok {
		return s
	}
	s, _ := Lookup(DefaultSignature)
	return s
}

// Names lists the catalog in display order.
func Names() []string {
	names := make([]string, len(signatures))
	for i, s := range signatures {
		names[i] = s.Name
	}
	return names
}
