package transfer

import (
	"sync"
	"time"
)

// DefaultSpeedInterval is the minimum spacing between two rate recomputations.
const DefaultSpeedInterval = time.Second

// ThroughputMeter derives a bytes-per-second rate from periodic samples of a cumulative byte
// count. Samples closer together than the interval keep the previous rate.
type ThroughputMeter struct {
	mu        sync.Mutex
	interval  time.Duration
	markTime  time.Time
	markBytes int64
	rate      int64
}

// NewThroughputMeter creates a meter marked at now with the given byte count
func NewThroughputMeter(interval time.Duration, now time.Time, bytes int64) *ThroughputMeter {
	if interval <= 0 {
		interval = DefaultSpeedInterval
	}
	return &ThroughputMeter{
		interval:  interval,
		markTime:  now,
		markBytes: bytes,
	}
}

// Sample records the cumulative total observed at now and returns the current rate.
func (m *ThroughputMeter) Sample(total int64, now time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := now.Sub(m.markTime)
	if elapsed < m.interval {
		return m.rate
	}

	ms := elapsed.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	delta := total - m.markBytes
	if delta < 0 {
		delta = 0
	}
	m.rate = delta * 1000 / ms
	m.markTime = now
	m.markBytes = total
	return m.rate
}

// Reset zeroes the rate and re-marks the meter
func (m *ThroughputMeter) Reset(total int64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = 0
	m.markTime = now
	m.markBytes = total
}

// Rate returns the last computed rate in bytes per second
func (m *ThroughputMeter) Rate() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}
