package grid

import (
	"fmt"

	"github.com/pthm-cable/detonate/compute"
)

// Field is a single-buffered grid of width floats per cell.
type Field struct {
	Size  Size
	Width int
	buf   *compute.Buffer
	dev   compute.Device
}

// AllocateField allocates a zeroed single-buffered field.
func AllocateField(dev compute.Device, size Size, width int) (*Field, error) {
	buf, err := dev.NewBuffer(size.Cells(), width)
	if err != nil {
		return nil, fmt.Errorf("allocating %s field of width %d: %w", size, width, err)
	}
	return &Field{Size: size, Width: width, buf: buf, dev: dev}, nil
}

// Buffer returns the backing buffer.
func (f *Field) Buffer() *compute.Buffer { return f.buf }

// Release returns the buffer to the device.
func (f *Field) Release() {
	if f == nil || f.buf == nil {
		return
	}
	f.dev.Release(f.buf)
	f.buf = nil
}

// Pair is a double-buffered field. Kernels read from Read() and write to
// Write(); Swap exchanges the roles without copying.
type Pair struct {
	Size  Size
	Width int
	bufs  [2]*compute.Buffer
	read  int
	dev   compute.Device
}

// Allocate allocates both halves of a pair, zeroed.
func Allocate(dev compute.Device, size Size, width int) (*Pair, error) {
	a, err := dev.NewBuffer(size.Cells(), width)
	if err != nil {
		return nil, fmt.Errorf("allocating %s pair of width %d: %w", size, width, err)
	}
	b, err := dev.NewBuffer(size.Cells(), width)
	if err != nil {
		dev.Release(a)
		return nil, fmt.Errorf("allocating %s pair of width %d: %w", size, width, err)
	}
	return &Pair{Size: size, Width: width, bufs: [2]*compute.Buffer{a, b}, dev: dev}, nil
}

// Read returns the current read buffer.
func (p *Pair) Read() *compute.Buffer { return p.bufs[p.read] }

// Write returns the current write buffer.
func (p *Pair) Write() *compute.Buffer { return p.bufs[1-p.read] }

// Swap exchanges read and write.
func (p *Pair) Swap() { p.read = 1 - p.read }

// Release returns both buffers to the device.
func (p *Pair) Release() {
	if p == nil {
		return
	}
	for i, b := range p.bufs {
		if b != nil {
			p.dev.Release(b)
			p.bufs[i] = nil
		}
	}
}
