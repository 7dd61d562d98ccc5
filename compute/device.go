package compute

import (
	"fmt"
	"sync"
)

// Device allocates buffers and moves data between host and device memory.
type Device interface {
	NewBuffer(count, stride int) (*Buffer, error)
	Release(b *Buffer)
	// Upload copies src into b starting at element 0.
	Upload(b *Buffer, src []float32) error
	// Fill sets every float of b to v.
	Fill(b *Buffer, v float32) error
	// ReadBack copies b into dst. It is the only point where the host waits
	// for queued work.
	ReadBack(b *Buffer, dst []float32) error
	// Allocated returns the bytes currently held by live buffers.
	Allocated() int64
}

// CPUDevice keeps buffers in host memory and runs kernels on a worker pool.
type CPUDevice struct {
	mu        sync.Mutex
	budget    int64
	allocated int64
	nextID    uint64
	live      int

	pool *Pool
}

// Option configures a CPUDevice.
type Option func(*CPUDevice)

// WithMemoryBudget caps the total bytes of live buffers. Zero means unlimited.
func WithMemoryBudget(bytes int64) Option {
	return func(d *CPUDevice) { d.budget = bytes }
}

// WithWorkers sets the worker pool size. Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(d *CPUDevice) { d.pool = NewPool(n) }
}

// NewCPUDevice creates a host-memory device.
func NewCPUDevice(opts ...Option) *CPUDevice {
	d := &CPUDevice{}
	for _, opt := range opts {
		opt(d)
	}
	if d.pool == nil {
		d.pool = NewPool(0)
	}
	return d
}

// NewBuffer allocates a zeroed buffer of count elements.
func (d *CPUDevice) NewBuffer(count, stride int) (*Buffer, error) {
	if count <= 0 || stride <= 0 {
		return nil, fmt.Errorf("compute: invalid buffer shape %dx%d", count, stride)
	}
	size := int64(count) * int64(stride) * floatBytes

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.budget > 0 && d.allocated+size > d.budget {
		return nil, fmt.Errorf("%w: need %d bytes, %d of %d in use", ErrOutOfMemory, size, d.allocated, d.budget)
	}
	d.allocated += size
	d.nextID++
	d.live++

	return &Buffer{
		id:     d.nextID,
		data:   make([]float32, count*stride),
		stride: stride,
		count:  count,
	}, nil
}

// Release returns b's memory. Releasing twice or releasing nil is a no-op.
func (d *CPUDevice) Release(b *Buffer) {
	if b == nil || b.released {
		return
	}
	d.mu.Lock()
	d.allocated -= b.Bytes()
	d.live--
	d.mu.Unlock()

	b.released = true
	b.data = nil
}

// Upload copies src into the front of b.
func (d *CPUDevice) Upload(b *Buffer, src []float32) error {
	if b.released {
		return ErrReleased
	}
	if len(src) > len(b.data) {
		return fmt.Errorf("compute: upload of %d floats into %s", len(src), b)
	}
	copy(b.data, src)
	return nil
}

// Fill sets every float of b to v.
func (d *CPUDevice) Fill(b *Buffer, v float32) error {
	if b.released {
		return ErrReleased
	}
	data := b.data
	d.pool.Run(len(data), func(start, end int) {
		for i := start; i < end; i++ {
			data[i] = v
		}
	})
	return nil
}

// ReadBack copies b into dst, which must hold at least b.Len() floats.
func (d *CPUDevice) ReadBack(b *Buffer, dst []float32) error {
	if b.released {
		return ErrReleased
	}
	if len(dst) < len(b.data) {
		return fmt.Errorf("compute: readback of %s into %d floats", b, len(dst))
	}
	copy(dst, b.data)
	return nil
}

// Allocated returns the bytes held by live buffers.
func (d *CPUDevice) Allocated() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated
}

// Live returns the number of unreleased buffers.
func (d *CPUDevice) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// Parallel runs fn over [0, n) on the device worker pool.
func (d *CPUDevice) Parallel(n int, fn func(start, end int)) {
	d.pool.Run(n, fn)
}

// Close stops the worker pool.
func (d *CPUDevice) Close() {
	d.pool.Stop()
}
