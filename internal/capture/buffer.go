package capture

import (
	"bytes"
	"sync"
)

// boundedBuffer keeps the tail of whatever is written into it, capped at a
// fixed size. It collects ffmpeg's stderr without growing unbounded on a
// chatty process.
type boundedBuffer struct {
	buffer bytes.Buffer
	mu     sync.Mutex
	size   int
}

func newBoundedBuffer(size int) *boundedBuffer {
	return &boundedBuffer{size: size}
}

// Write implements the io.Writer interface
func (b *boundedBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buffer.Len()+len(p) > b.size {
		b.buffer.Reset()
		if len(p) > b.size {
			p = p[len(p)-b.size:]
		}
	}
	return b.buffer.Write(p)
}

// String returns the contents of the buffer as a string
func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}
