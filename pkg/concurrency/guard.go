package concurrency

import (
	"errors"
	"sync"
)

var ErrBusy = errors.New("all slots are busy")

// Guard admits at most a fixed number of concurrent tasks and rejects the rest immediately.
type Guard struct {
	mu    sync.Mutex
	slots int
	inUse int
}

// NewGuard creates a guard with the given number of slots, at least one
func NewGuard(slots int) *Guard {
	if slots <= 0 {
		slots = 1
	}
	return &Guard{slots: slots}
}

// TryAcquire takes a slot. The returned release func gives it back and is safe to call twice.
func (g *Guard) TryAcquire() (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inUse >= g.slots {
		return nil, ErrBusy
	}
	g.inUse++

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.inUse--
			g.mu.Unlock()
		})
	}, nil
}

// Execute runs task in a slot, or returns ErrBusy without running it
func (g *Guard) Execute(task func() error) error {
	release, err := g.TryAcquire()
	if err != nil {
		return err
	}
	defer release()
	return task()
}

// InUse returns the number of occupied slots
func (g *Guard) InUse() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inUse
}

// Slots returns the capacity
func (g *Guard) Slots() int {
	return g.slots
}
