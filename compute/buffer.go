// Package compute defines the dispatch contract between the fluid solver and
// its kernel programs, and a CPU device that owns the buffers.
package compute

import (
	"errors"
	"fmt"
)

// Element strides in floats.
const (
	StrideScalar   = 1 // 4 bytes
	StrideVector   = 3 // 12 bytes
	StrideParticle = 9 // 36 bytes: position, velocity, temperature, mass, soot
)

// Float offsets inside a particle element.
const (
	ParticlePosition    = 0
	ParticleVelocity    = 3
	ParticleTemperature = 6
	ParticleMass        = 7
	ParticleSoot        = 8
)

const floatBytes = 4

var (
	// ErrOutOfMemory is returned when an allocation exceeds the device budget.
	ErrOutOfMemory = errors.New("compute: out of device memory")
	// ErrReleased is returned when a released buffer is used.
	ErrReleased = errors.New("compute: buffer released")
	// ErrUnknownKernel is returned by FindKernel for names a program does not define.
	ErrUnknownKernel = errors.New("compute: unknown kernel")
	// ErrMissingBinding is returned by Dispatch when a required binding is unset.
	ErrMissingBinding = errors.New("compute: missing binding")
)

// Buffer is a flat array of float32 elements of a fixed stride.
type Buffer struct {
	id       uint64
	data     []float32
	stride   int
	count    int
	released bool
}

// ID identifies the buffer for the lifetime of its device.
func (b *Buffer) ID() uint64 { return b.id }

// Count returns the number of elements.
func (b *Buffer) Count() int { return b.count }

// Stride returns the element stride in floats.
func (b *Buffer) Stride() int { return b.stride }

// Len returns the number of floats.
func (b *Buffer) Len() int { return b.count * b.stride }

// Bytes returns the buffer size in bytes.
func (b *Buffer) Bytes() int64 { return int64(b.count) * int64(b.stride) * floatBytes }

// Released reports whether the buffer has been returned to its device.
func (b *Buffer) Released() bool { return b.released }

// Data exposes the backing store to kernels running on the owning device.
// It returns nil once the buffer is released.
func (b *Buffer) Data() []float32 {
	if b == nil || b.released {
		return nil
	}
	return b.data
}

func (b *Buffer) String() string {
	return fmt.Sprintf("buffer#%d[%dx%d]", b.id, b.count, b.stride)
}
