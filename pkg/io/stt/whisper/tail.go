package whisper

import (
	"bytes"
	"strings"
	"sync"

	"github.com/smallnest/ringbuffer"
)

const defaultTailBytes = 64 * 1024

// tailBuffer keeps the most recent bytes written to it, dropping the oldest
// ones once capacity is reached. Used for worker stderr, which can be chatty.
type tailBuffer struct {
	mu sync.Mutex
	rb *ringbuffer.RingBuffer
}

func newTailBuffer(size int) *tailBuffer {
	if size <= 0 {
		size = defaultTailBytes
	}
	return &tailBuffer{rb: ringbuffer.New(size).SetBlocking(false)}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p)
	capacity := t.rb.Capacity()
	if len(p) > capacity {
		t.rb.Reset()
		p = p[len(p)-capacity:]
	}
	if free := t.rb.Free(); free < len(p) {
		discard := make([]byte, len(p)-free)
		if _, err := t.rb.Read(discard); err != nil {
			t.rb.Reset()
		}
	}
	if _, err := t.rb.Write(p); err != nil {
		return 0, err
	}
	// report the full length so io.Copy in os/exec never sees a short write
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rb.IsEmpty() {
		return ""
	}
	buf := make([]byte, t.rb.Length())
	return strings.TrimSpace(string(t.rb.Bytes(buf)))
}

// lineWriter splits a byte stream into lines, keeps every complete line and
// optionally hands each one to onLine. Flush must be called once the stream is done.
type lineWriter struct {
	mu      sync.Mutex
	partial []byte
	lines   []string
	onLine  func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := append(w.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		w.emit(string(data[:i]))
		data = data[i+1:]
	}
	w.partial = append([]byte(nil), data...)
	return len(p), nil
}

func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.partial) > 0 {
		w.emit(string(w.partial))
		w.partial = nil
	}
}

// Lines returns a copy of the lines seen so far.
func (w *lineWriter) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.lines...)
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r")
	w.lines = append(w.lines, line)
	if w.onLine != nil {
		w.onLine(line)
	}
}

