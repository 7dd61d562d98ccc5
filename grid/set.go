package grid

import (
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/detonate/compute"
)

// Set holds every field of one simulation instance.
type Set struct {
	Size        Size
	Velocity    *Pair
	Temperature *Pair
	Pressure    *Pair
	Density     *Pair // nil unless requested
	Divergence  *Field
	Obstacles   *Field
}

// NewSet allocates every field at size. Either all fields are allocated or,
// on error, none remain.
func NewSet(dev compute.Device, size Size, withDensity bool) (*Set, error) {
	s := &Set{Size: size}
	var err error

	if s.Velocity, err = Allocate(dev, size, compute.StrideVector); err != nil {
		return nil, err
	}
	if s.Temperature, err = Allocate(dev, size, compute.StrideScalar); err != nil {
		s.Release()
		return nil, err
	}
	if s.Pressure, err = Allocate(dev, size, compute.StrideScalar); err != nil {
		s.Release()
		return nil, err
	}
	if withDensity {
		if s.Density, err = Allocate(dev, size, compute.StrideScalar); err != nil {
			s.Release()
			return nil, err
		}
	}
	if s.Divergence, err = AllocateField(dev, size, compute.StrideScalar); err != nil {
		s.Release()
		return nil, err
	}
	if s.Obstacles, err = AllocateField(dev, size, compute.StrideScalar); err != nil {
		s.Release()
		return nil, err
	}

	slog.Info("grid allocated",
		"size", size.String(),
		"dims", size.Dims(),
		"density", withDensity,
		"bytes", humanize.Bytes(uint64(s.Bytes())),
	)
	return s, nil
}

// Bytes returns the memory held by the set.
func (s *Set) Bytes() int64 {
	var total int64
	for _, p := range []*Pair{s.Velocity, s.Temperature, s.Pressure, s.Density} {
		if p != nil && p.Read() != nil {
			total += p.Read().Bytes() * 2
		}
	}
	for _, f := range []*Field{s.Divergence, s.Obstacles} {
		if f != nil && f.Buffer() != nil {
			total += f.Buffer().Bytes()
		}
	}
	return total
}

// Release returns every buffer of the set.
func (s *Set) Release() {
	if s == nil {
		return
	}
	s.Velocity.Release()
	s.Temperature.Release()
	s.Pressure.Release()
	s.Density.Release()
	s.Divergence.Release()
	s.Obstacles.Release()
}
