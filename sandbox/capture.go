package sandbox

import (
	"bytes"
	"sync"
)

// limitedBuffer captures process output up to a fixed cap. Writes past the
// cap are accepted and discarded: a chatty program keeps running and exits
// normally, it just loses the tail of its output.
type limitedBuffer struct {
	mu        sync.Mutex
	max       int64
	buf       bytes.Buffer
	truncated bool
}

func newLimitedBuffer(maxBytes int64) *limitedBuffer {
	return &limitedBuffer{max: maxBytes}
}

// Write never returns an error: reporting short writes here would make the
// runtime's stdio copier kill the pipe early, and exceeding the output cap
// must not terminate the process.
func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.max - int64(b.buf.Len())
	if remaining <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *limitedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
