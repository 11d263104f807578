package concurrency

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_RejectsWhenFull(t *testing.T) {
	g := NewGuard(2)

	r1, err := g.TryAcquire()
	require.NoError(t, err)
	r2, err := g.TryAcquire()
	require.NoError(t, err)

	_, err = g.TryAcquire()
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 2, g.InUse())

	r1()
	r1()
	assert.Equal(t, 1, g.InUse(), "release is idempotent")

	r3, err := g.TryAcquire()
	require.NoError(t, err)
	r2()
	r3()
	assert.Equal(t, 0, g.InUse())
}

func TestGuard_Execute(t *testing.T) {
	g := NewGuard(0)
	assert.Equal(t, 1, g.Slots())

	taskErr := errors.New("task failed")
	err := g.Execute(func() error {
		assert.ErrorIs(t, g.Execute(func() error { return nil }), ErrBusy)
		return taskErr
	})
	assert.ErrorIs(t, err, taskErr)
	assert.Equal(t, 0, g.InUse())
}
