// Package solver implements the grid passes of one fluid step. Each pass is
// a small struct built around the compute.Program that runs its kernels; a
// pass built with a nil program does nothing.
package solver

import (
	"fmt"

	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/grid"
)

type stage struct {
	prog    compute.Program
	kernels map[string]compute.Kernel
}

func newStage(prog compute.Program) stage {
	return stage{prog: prog, kernels: make(map[string]compute.Kernel)}
}

// Enabled reports whether the pass has a program to run.
func (s *stage) Enabled() bool { return s.prog != nil }

func (s *stage) kernel(name string) (compute.Kernel, error) {
	if k, ok := s.kernels[name]; ok {
		return k, nil
	}
	k, err := s.prog.FindKernel(name)
	if err != nil {
		return compute.Kernel{}, err
	}
	s.kernels[name] = k
	return k, nil
}

func (s *stage) dispatch(k compute.Kernel, g compute.Groups) error {
	if err := s.prog.Dispatch(k, g); err != nil {
		return fmt.Errorf("dispatching %s: %w", k.Name, err)
	}
	return nil
}

func groups(size grid.Size) compute.Groups {
	return compute.GroupsFor(size.X, size.Y, size.Z)
}

// vectorBindings returns the read/write binding names for a velocity field:
// RG on a flat grid, RGB otherwise.
func vectorBindings(size grid.Size) (read, write string) {
	if size.Dims() == 2 {
		return compute.BindReadRG, compute.BindWriteRG
	}
	return compute.BindReadRGB, compute.BindWriteRGB
}
