// Package stream hands the most recent processed frame from the analytics
// loop to HTTP consumers. There is exactly one slot: the producer overwrites
// it every frame, consumers copy it out. Nobody ever waits for anybody.
package stream

import (
	"sync"

	"github.com/third-eye-sec/thirdeye/internal/frame"
)

// Broadcast is the single-slot frame hand-off.
type Broadcast struct {
	mu     sync.Mutex
	latest *frame.Frame
}

// New creates an empty hand-off.
func New() *Broadcast {
	return &Broadcast{}
}

// Publish replaces the slot with the given frame and takes ownership of
// it; the replaced frame is released. The analytics loop publishes a frame
// it is done with.
func (b *Broadcast) Publish(f *frame.Frame) {
	b.mu.Lock()
	old := b.latest
	b.latest = f
	b.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// Latest returns a copy of the current frame, or nil when nothing has been
// published yet. The copy is taken under the lock; encoding happens on the
// caller's time and the caller must close the copy.
func (b *Broadcast) Latest() *frame.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest == nil {
		return nil
	}
	return b.latest.Clone()
}

// Close releases the slot.
func (b *Broadcast) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest == nil {
		return nil
	}
	err := b.latest.Close()
	b.latest = nil
	return err
}
