package particles

import (
	"fmt"

	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/grid"
	"github.com/pthm-cable/detonate/solver"
)

// Buffer is the fixed-size device store of particles.
type Buffer struct {
	buf   *compute.Buffer
	count int
	dev   compute.Device
}

// NewBuffer allocates room for exactly len(initial) particles and uploads them.
func NewBuffer(dev compute.Device, initial []Particle) (*Buffer, error) {
	b, err := dev.NewBuffer(len(initial), compute.StrideParticle)
	if err != nil {
		return nil, fmt.Errorf("allocating %d particles: %w", len(initial), err)
	}
	if err := dev.Upload(b, Encode(initial)); err != nil {
		dev.Release(b)
		return nil, err
	}
	return &Buffer{buf: b, count: len(initial), dev: dev}, nil
}

// Count is the number of particles. It never changes.
func (b *Buffer) Count() int { return b.count }

// Device returns the backing buffer.
func (b *Buffer) Device() *compute.Buffer { return b.buf }

// Snapshot reads every particle back to the host. It blocks on queued work.
func (b *Buffer) Snapshot() ([]Particle, error) {
	data := make([]float32, b.buf.Len())
	if err := b.dev.ReadBack(b.buf, data); err != nil {
		return nil, err
	}
	return Decode(data), nil
}

// Release returns the buffer.
func (b *Buffer) Release() {
	if b == nil || b.buf == nil {
		return
	}
	b.dev.Release(b.buf)
	b.buf = nil
}

// VelocityParams couples particles to the fluid.
type VelocityParams struct {
	Drag        float32
	Radius      float32
	ThermalMass float32
	Lift        float32 // acceleration per degree above ambient
	Weight      float32 // acceleration per unit mass, downward
	Ambient     float32
}

// BurnParams controls fuel consumption.
type BurnParams struct {
	Rate       float32 // mass per second
	Heat       float32 // temperature per unit mass burned
	Threshold  float32
	Divergence float32 // expansion per unit mass burned
}

// Module dispatches the particle kernels.
type Module struct {
	prog    compute.Program
	kernels map[string]compute.Kernel
}

func NewModule(prog compute.Program) *Module {
	return &Module{prog: prog, kernels: make(map[string]compute.Kernel)}
}

// Enabled reports whether the module has a program to run.
func (m *Module) Enabled() bool { return m.prog != nil }

func (m *Module) kernel(name string) (compute.Kernel, error) {
	if k, ok := m.kernels[name]; ok {
		return k, nil
	}
	k, err := m.prog.FindKernel(name)
	if err != nil {
		return compute.Kernel{}, err
	}
	m.kernels[name] = k
	return k, nil
}

func (m *Module) dispatch(k compute.Kernel, count int) error {
	if err := m.prog.Dispatch(k, compute.GroupsForCount(count)); err != nil {
		return fmt.Errorf("dispatching %s: %w", k.Name, err)
	}
	return nil
}

// UpdateVelocity drags particles toward the fluid velocity, exchanges heat
// with the fluid, and applies buoyant lift.
func (m *Module) UpdateVelocity(ps *Buffer, temperature, velocity *grid.Pair, p VelocityParams, dt float32, size grid.Size) error {
	if !m.Enabled() {
		return nil
	}
	k, err := m.kernel(compute.KernelCalculateParticlesVelocity)
	if err != nil {
		return err
	}
	m.prog.SetFloat(compute.UniformDT, dt)
	m.prog.SetFloat(compute.UniformParticleDrag, p.Drag)
	m.prog.SetFloat(compute.UniformParticleRadius, p.Radius)
	m.prog.SetFloat(compute.UniformThermalMass, p.ThermalMass)
	m.prog.SetFloat(compute.UniformBuoyancy, p.Lift)
	m.prog.SetFloat(compute.UniformWeight, p.Weight)
	m.prog.SetFloat(compute.UniformAmbientTemperature, p.Ambient)
	m.prog.SetVector(compute.UniformUp, solver.Up)
	m.prog.SetVector(compute.UniformSize, size.Vec3())

	m.prog.SetBuffer(k, compute.BindParticles, ps.buf)
	m.prog.SetBuffer(k, compute.BindVelocity, velocity.Read())
	m.prog.SetBuffer(k, compute.BindTemperature, temperature.Read())
	return m.dispatch(k, ps.count)
}

// UpdatePosition integrates positions by dt.
func (m *Module) UpdatePosition(ps *Buffer, dt float32, size grid.Size) error {
	if !m.Enabled() {
		return nil
	}
	k, err := m.kernel(compute.KernelApplyParticlesVelocities)
	if err != nil {
		return err
	}
	m.prog.SetFloat(compute.UniformDT, dt)
	m.prog.SetVector(compute.UniformSize, size.Vec3())
	m.prog.SetBuffer(k, compute.BindParticles, ps.buf)
	return m.dispatch(k, ps.count)
}

// Burn consumes fuel from burning particles, writing heat into temperature
// and expansion into divergence at each particle's cell. Both fields are
// written in place.
func (m *Module) Burn(ps *Buffer, temperature *compute.Buffer, divergence *grid.Field, p BurnParams, dt float32, size grid.Size) error {
	if !m.Enabled() {
		return nil
	}
	k, err := m.kernel(compute.KernelBurnParticle)
	if err != nil {
		return err
	}
	m.prog.SetFloat(compute.UniformDT, dt)
	m.prog.SetFloat(compute.UniformBurnRate, p.Rate)
	m.prog.SetFloat(compute.UniformProducedHeat, p.Heat)
	m.prog.SetFloat(compute.UniformDivergenceAmount, p.Divergence)
	m.prog.SetFloat(compute.UniformBurnThreshold, p.Threshold)
	m.prog.SetVector(compute.UniformSize, size.Vec3())

	m.prog.SetBuffer(k, compute.BindParticles, ps.buf)
	m.prog.SetBuffer(k, compute.BindTemperatureWrite, temperature)
	m.prog.SetBuffer(k, compute.BindDivergence, divergence.Buffer())
	return m.dispatch(k, ps.count)
}
