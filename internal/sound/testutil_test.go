package sound

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"
)

const testRate = beep.SampleRate(44100)

// fakeBackend records what would have reached the audio device.
type fakeBackend struct {
	mu        sync.Mutex
	inits     int
	closes    int
	initErr   error
	streamers []beep.Streamer
}

func (f *fakeBackend) Init(rate beep.SampleRate, bufferSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return f.initErr
}

func (f *fakeBackend) Play(s ...beep.Streamer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamers = append(f.streamers, s...)
}

func (f *fakeBackend) Clear() {}

func (f *fakeBackend) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

func (f *fakeBackend) setInitErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initErr = err
}

func (f *fakeBackend) played() []beep.Streamer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]beep.Streamer(nil), f.streamers...)
}

var errNoDevice = errors.New("no audio device")

// constant yields n frames of v on both channels.
func constant(v float64, n int) beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= n {
			return 0, false
		}
		i := 0
		for ; i < len(samples) && pos < n; i++ {
			samples[i][0], samples[i][1] = v, v
			pos++
		}
		return i, true
	})
}

// drain reads s to the end and returns every frame.
func drain(s beep.Streamer) [][2]float64 {
	var out [][2]float64
	chunk := make([][2]float64, 512)
	for {
		n, ok := s.Stream(chunk)
		out = append(out, chunk[:n]...)
		if !ok {
			return out
		}
	}
}

// writeWAV encodes n frames of v at rate into dir/name.
func writeWAV(t *testing.T, dir, name string, rate beep.SampleRate, v float64, n int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create %s: %v", p, err)
	}
	defer f.Close()
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, constant(v, n), format); err != nil {
		t.Fatalf("encode %s: %v", p, err)
	}
	return p
}
