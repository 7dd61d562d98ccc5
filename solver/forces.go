package solver

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/grid"
)

// Up is the buoyancy axis in grid space.
var Up = mgl32.Vec3{0, 1, 0}

// Buoyancy lifts hot fluid and, when density is present, pulls dense fluid down.
type Buoyancy struct {
	stage
}

func NewBuoyancy(prog compute.Program) *Buoyancy {
	return &Buoyancy{stage: newStage(prog)}
}

// Apply adds buoyancy*(T-ambient) - weight*density along Up and swaps velocity.
func (b *Buoyancy) Apply(dt float32, size grid.Size, buoyancy, weight, ambient float32, velocity, density, temperature *grid.Pair) error {
	if !b.Enabled() {
		return nil
	}
	k, err := b.kernel(compute.KernelApplyBuoyancy)
	if err != nil {
		return err
	}
	b.setUniforms(dt, size, buoyancy, ambient)
	b.prog.SetFloat(compute.UniformWeight, weight)

	_, write := vectorBindings(size)
	b.prog.SetBuffer(k, write, velocity.Write())
	b.prog.SetBuffer(k, compute.BindVelocity, velocity.Read())
	b.prog.SetBuffer(k, compute.BindDensity, density.Read())
	b.prog.SetBuffer(k, compute.BindTemperature, temperature.Read())
	if err := b.dispatch(k, groups(size)); err != nil {
		return err
	}
	velocity.Swap()
	return nil
}

// ApplySimple adds buoyancy*(T-ambient) along Up with no density term.
func (b *Buoyancy) ApplySimple(dt float32, size grid.Size, buoyancy, ambient float32, velocity, temperature *grid.Pair) error {
	if !b.Enabled() {
		return nil
	}
	k, err := b.kernel(compute.KernelApplyBuoyancySimple)
	if err != nil {
		return err
	}
	b.setUniforms(dt, size, buoyancy, ambient)

	_, write := vectorBindings(size)
	b.prog.SetBuffer(k, write, velocity.Write())
	b.prog.SetBuffer(k, compute.BindVelocity, velocity.Read())
	b.prog.SetBuffer(k, compute.BindTemperature, temperature.Read())
	if err := b.dispatch(k, groups(size)); err != nil {
		return err
	}
	velocity.Swap()
	return nil
}

func (b *Buoyancy) setUniforms(dt float32, size grid.Size, buoyancy, ambient float32) {
	b.prog.SetVector(compute.UniformSize, size.Vec3())
	b.prog.SetVector(compute.UniformUp, Up)
	b.prog.SetFloat(compute.UniformBuoyancy, buoyancy)
	b.prog.SetFloat(compute.UniformAmbientTemperature, ambient)
	b.prog.SetFloat(compute.UniformDT, dt)
}

// Impulse splats a source into a scalar field.
type Impulse struct {
	stage
}

func NewImpulse(prog compute.Program) *Impulse {
	return &Impulse{stage: newStage(prog)}
}

// Apply adds amount*dt with a radial falloff around pos (cell units) and
// swaps the field. A non-positive radius does nothing.
func (im *Impulse) Apply(dt float32, size grid.Size, amount, radius float32, pos mgl32.Vec3, field *grid.Pair) error {
	if !im.Enabled() || radius <= 0 {
		return nil
	}
	k, err := im.kernel(compute.KernelImpulse)
	if err != nil {
		return err
	}
	im.prog.SetVector(compute.UniformSize, size.Vec3())
	im.prog.SetFloat(compute.UniformRadius, radius)
	im.prog.SetFloat(compute.UniformSourceAmount, amount)
	im.prog.SetFloat(compute.UniformDT, dt)
	im.prog.SetVector(compute.UniformSourcePos, pos)

	im.prog.SetBuffer(k, compute.BindReadR, field.Read())
	im.prog.SetBuffer(k, compute.BindWriteR, field.Write())
	if err := im.dispatch(k, groups(size)); err != nil {
		return err
	}
	field.Swap()
	return nil
}
