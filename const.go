package main

import "time"

const (
	DEFAULT_CONFIG_NAME = ".clack.yaml"
	DEFAULT_PROFILE     = "wood"
	DEFAULT_SAMPLE_RATE = 44100
	DEFAULT_BUFFER      = 100 * time.Millisecond
	DEFAULT_IDLE        = 30 * time.Second

	// resume retries on every keypress, so the failure advisory is rate limited
	RESUME_ADVISORY_EVERY = 5 * time.Second
)

// DEFAULT_SOUNDS maps the built-in profiles to their assets, relative to the
// sounds directory.
var DEFAULT_SOUNDS = map[string]string{
	"wood":       "sounds/wood.mp3",
	"electronic": "sounds/electronic.mp3",
	"drum":       "sounds/drum.mp3",
}

const KEY_HELP = "space start/stop  ←/→ -/+ tempo  t set tempo  s signature  p sound  r reload  q quit"
