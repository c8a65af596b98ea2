package actuator

import (
	"sync"

	"github.com/sweeney/param-actuator/internal/logic"
)

// FakeDispatcher records fires for test assertions.
type FakeDispatcher struct {
	mu    sync.Mutex
	fires []logic.Fire
}

// NewFakeDispatcher creates a FakeDispatcher for testing.
func NewFakeDispatcher() *FakeDispatcher {
	return &FakeDispatcher{}
}

// Dispatch records the fire.
func (f *FakeDispatcher) Dispatch(fire logic.Fire) {
	f.mu.Lock()
	f.fires = append(f.fires, fire)
	f.mu.Unlock()
}

// Fires returns a copy of the recorded fires.
func (f *FakeDispatcher) Fires() []logic.Fire {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.Fire(nil), f.fires...)
}

// Reset clears recorded fires.
func (f *FakeDispatcher) Reset() {
	f.mu.Lock()
	f.fires = nil
	f.mu.Unlock()
}
