package solver

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/grid"
)

// Obstacles rasterises the solid mask: clear, then the boundary shell, then
// sphere colliders, every step.
type Obstacles struct {
	stage
	dev compute.Device
}

// NewObstacles creates the obstacle pass. Clear runs on dev and works even
// without a program.
func NewObstacles(prog compute.Program, dev compute.Device) *Obstacles {
	return &Obstacles{stage: newStage(prog), dev: dev}
}

// Clear zeroes the obstacle field.
func (o *Obstacles) Clear(field *grid.Field) error {
	return o.dev.Fill(field.Buffer(), 0)
}

// SetBoundary marks the grid's outer shell solid.
func (o *Obstacles) SetBoundary(size grid.Size, field *grid.Field) error {
	if !o.Enabled() {
		return nil
	}
	k, err := o.kernel(compute.KernelBoundary)
	if err != nil {
		return err
	}
	o.prog.SetVector(compute.UniformSize, size.Vec3())
	o.prog.SetBuffer(k, compute.BindWriteR, field.Buffer())
	return o.dispatch(k, groups(size))
}

// AddSphere marks the cells inside a sphere solid, or for a container the
// cells outside it. Centre and radius are in cell units. A non-positive
// radius does nothing.
func (o *Obstacles) AddSphere(size grid.Size, centre mgl32.Vec3, radius float32, container bool, field *grid.Field) error {
	if !o.Enabled() || radius <= 0 {
		return nil
	}
	name := compute.KernelAddSphereObstacle
	if container {
		name = compute.KernelAddSphereContainer
	}
	k, err := o.kernel(name)
	if err != nil {
		return err
	}
	o.prog.SetVector(compute.UniformSize, size.Vec3())
	o.prog.SetFloat(compute.UniformSphereRadius, radius)
	o.prog.SetVector(compute.UniformSpherePosition, centre)
	o.prog.SetBuffer(k, compute.BindWriteR, field.Buffer())
	return o.dispatch(k, groups(size))
}
