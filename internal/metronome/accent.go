package metronome

// Accent orders beat strength, weakest first.
type Accent int

const (
	AccentWeak Accent = iota
	AccentMain
	AccentFirst
)

func (a Accent) String() string {
	switch a {
	case AccentFirst:
		return "first"
	case AccentMain:
		return "main"
	default:
		return "weak"
	}
}

// Beat is the classification of a single step.
type Beat struct {
	Step  int
	First bool
	Main  bool
	Weak  bool
}

// Classify determines the accent of step for a measure with the given number
// of subdivisions per beat.
func Classify(step, subdivisions int) Beat {
	if subdivisions < 1 {
		subdivisions = 1
	}
	main := step%subdivisions == 0
	return Beat{
		Step:  step,
		First: step == 0,
		Main:  main,
		Weak:  !main,
	}
}

// Accent returns the strongest accent that applies; step 0 is always first.
func (b Beat) Accent() Accent {
	switch {
	case b.First:
		return AccentFirst
	case b.Main:
		return AccentMain
	default:
		return AccentWeak
	}
}
