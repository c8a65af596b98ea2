package gpio

import "sync"

// FakeReader is a test double with a settable interlock state.
type FakeReader struct {
	mu sync.Mutex

	engaged bool

	// ReadError, if set, will be returned by Engaged().
	ReadError error

	// Closed tracks if Close was called.
	Closed bool

	// Reads counts calls to Engaged.
	Reads int
}

// NewFakeReader creates a FakeReader in the given state.
func NewFakeReader(engaged bool) *FakeReader {
	return &FakeReader{engaged: engaged}
}

// Set changes the reported interlock state.
func (f *FakeReader) Set(engaged bool) {
	f.mu.Lock()
	f.engaged = engaged
	f.mu.Unlock()
}

// Engaged returns the scripted state.
func (f *FakeReader) Engaged() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.engaged, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
