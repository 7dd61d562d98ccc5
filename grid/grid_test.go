package grid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/detonate/compute"
)

func TestClosestPowerOfTwo(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-3, 1}, {0, 1}, {1, 1}, {2, 2}, {3, 4}, {5, 4}, {6, 8},
		{100, 128}, {128, 128}, {129, 128}, {200, 256}, {1000, 1024},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClosestPowerOfTwo(tt.in), "ClosestPowerOfTwo(%d)", tt.in)
	}
}

func TestSnap(t *testing.T) {
	assert.Equal(t, Size{128, 128, 128}, Snap(100, 128, 129, 3))
	s := Snap(60, 70, 64, 2)
	assert.Equal(t, Size{64, 64, 1}, s)
	assert.Equal(t, 2, s.Dims())
	assert.Equal(t, 64*64, s.Cells())
}

func TestSwapIdempotence(t *testing.T) {
	dev := compute.NewCPUDevice()
	defer dev.Close()

	p, err := Allocate(dev, Size{8, 8, 8}, compute.StrideScalar)
	require.NoError(t, err)
	defer p.Release()

	r, w := p.Read(), p.Write()
	require.NotEqual(t, r.ID(), w.ID())

	p.Swap()
	assert.Equal(t, w.ID(), p.Read().ID())
	assert.Equal(t, r.ID(), p.Write().ID())

	p.Swap()
	assert.Equal(t, r.ID(), p.Read().ID(), "swap twice should restore the original roles")
	assert.Equal(t, w.ID(), p.Write().ID())
}

func TestNewSetAllocatesAll(t *testing.T) {
	dev := compute.NewCPUDevice()
	defer dev.Close()

	size := Size{16, 16, 16}
	s, err := NewSet(dev, size, true)
	require.NoError(t, err)

	cells := int64(size.Cells())
	// velocity pair (3 floats) + 3 scalar pairs + 2 scalar fields
	want := cells*4*(3*2+3*2+2)
	assert.Equal(t, want, s.Bytes())
	assert.Equal(t, want, dev.Allocated())

	s.Release()
	assert.Zero(t, dev.Allocated())
	assert.Zero(t, dev.Live())
}

func TestNewSetFailureReleasesEverything(t *testing.T) {
	size := Size{16, 16, 16}
	// Enough for velocity and temperature only.
	budget := int64(size.Cells()) * 4 * (3*2 + 2)
	dev := compute.NewCPUDevice(compute.WithMemoryBudget(budget))
	defer dev.Close()

	s, err := NewSet(dev, size, true)
	assert.Nil(t, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, compute.ErrOutOfMemory))
	assert.Zero(t, dev.Allocated(), "failed allocation must not leak buffers")
	assert.Zero(t, dev.Live())
}
