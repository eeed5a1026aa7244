package sound

import (
	"sort"
	"sync"

	"github.com/faiface/beep"
)

// Bank holds one decoded buffer per sound profile. Buffers are never mutated
// after they are stored; a reload swaps in a new buffer.
type Bank struct {
	mu      sync.RWMutex
	buffers map[string]*beep.Buffer
}

func NewBank() *Bank {
	return &Bank{buffers: map[string]*beep.Buffer{}}
}

// Get returns the buffer for profile. A missing buffer is normal: the asset
// may still be loading, may have failed, or may not exist.
func (b *Bank) Get(profile string) (*beep.Buffer, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	buf, ok := b.buffers[profile]
	return buf, ok
}

func (b *Bank) Has(profile string) bool {
	_, ok := b.Get(profile)
	return ok
}

func (b *Bank) Put(profile string, buf *beep.Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffers[profile] = buf
}

func (b *Bank) Profiles() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.buffers))
	for name := range b.buffers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
