package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThroughputMeter_DebouncesCloseSamples(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	m := NewThroughputMeter(time.Second, t0, 0)

	assert.Equal(t, int64(0), m.Sample(500, t0.Add(300*time.Millisecond)))
	assert.Equal(t, int64(500), m.Sample(1000, t0.Add(2*time.Second)))
	// too close to the previous mark: rate is unchanged
	assert.Equal(t, int64(500), m.Sample(9000, t0.Add(2500*time.Millisecond)))
}

func TestThroughputMeter_RateFromSpacedSamples(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	m := NewThroughputMeter(time.Second, t0, 0)

	assert.Equal(t, int64(250), m.Sample(300, t0.Add(1200*time.Millisecond)))
	assert.Equal(t, int64(250), m.Sample(600, t0.Add(2400*time.Millisecond)))
	assert.Equal(t, int64(250), m.Rate())
}

func TestThroughputMeter_ExactIntervalRecomputes(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	m := NewThroughputMeter(time.Second, t0, 0)

	assert.Equal(t, int64(100), m.Sample(100, t0.Add(time.Second)))
}

func TestThroughputMeter_Reset(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	m := NewThroughputMeter(0, t0, 0)

	m.Sample(4000, t0.Add(2*time.Second))
	assert.Equal(t, int64(2000), m.Rate())

	m.Reset(4000, t0.Add(3*time.Second))
	assert.Equal(t, int64(0), m.Rate())
	assert.Equal(t, int64(1000), m.Sample(5000, t0.Add(4*time.Second)))
}

func TestThroughputMeter_NegativeDeltaClamps(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	m := NewThroughputMeter(time.Second, t0, 1000)

	assert.Equal(t, int64(0), m.Sample(10, t0.Add(2*time.Second)))
}
