package gpio

import "sync"

// FakeOutput is a test double that records the levels written to it.
// Safe for concurrent use.
type FakeOutput struct {
	mu sync.Mutex

	// Writes contains every level written, in order.
	Writes []bool

	// WriteError, if set, will be returned by Write() and nothing is recorded.
	WriteError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeOutput creates a FakeOutput with the line low.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Write records the level.
func (f *FakeOutput) Write(high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, high)
	return nil
}

// Level returns the last level written; false if nothing was written.
func (f *FakeOutput) Level() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Writes) == 0 {
		return false
	}
	return f.Writes[len(f.Writes)-1]
}

// SetWriteError sets the error returned by subsequent writes.
func (f *FakeOutput) SetWriteError(err error) {
	f.mu.Lock()
	f.WriteError = err
	f.mu.Unlock()
}

// Close drives the line low and marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes = append(f.Writes, false)
	f.Closed = true
	return nil
}

// Reset clears recorded writes.
func (f *FakeOutput) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes = nil
	f.WriteError = nil
	f.Closed = false
}
