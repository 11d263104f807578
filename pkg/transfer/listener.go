package transfer

import "fmt"

// Listener receives transfer lifecycle events from a Manager.
// Events are delivered on their own goroutines, so implementations must be safe for concurrent use.
type Listener interface {
	// ID returns a unique identifier for this listener
	ID() string

	// OnStateChanged is called after a transfer moved between states
	OnStateChanged(t Transfer, from, to State)

	// OnDownloadFinished is called once per successfully finished download
	OnDownloadFinished(t Transfer)
}

// RetryListener is implemented by listeners that also want to hear about scheduled retries
type RetryListener interface {
	OnRetryScheduled(t Transfer, attempt int)
}

// AddListener adds a lifecycle listener
func (m *Manager) AddListener(l Listener) {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// RemoveListener removes a listener by ID
func (m *Manager) RemoveListener(id string) {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	for i, l := range m.listeners {
		if l.ID() == id {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

func (m *Manager) notify(fn func(l Listener)) {
	m.eventsMu.RLock()
	listenersCopy := make([]Listener, len(m.listeners))
	copy(listenersCopy, m.listeners)
	m.eventsMu.RUnlock()

	for _, listener := range listenersCopy {
		go func(l Listener) {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("Listener panicked", "listener", l.ID(), "panic", fmt.Sprint(r))
				}
			}()
			fn(l)
		}(listener)
	}
}

// RetryScheduled tells the retry listeners that t will try again
func (m *Manager) RetryScheduled(t Transfer, attempt int) {
	m.logger.Debug("Transfer retry scheduled", "transfer", t.ID(), "attempt", attempt)
	m.notify(func(l Listener) {
		if rl, ok := l.(RetryListener); ok {
			rl.OnRetryScheduled(t, attempt)
		}
	})
}
