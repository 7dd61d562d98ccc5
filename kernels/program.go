// Package kernels is a CPU implementation of the fluid kernel set. It
// satisfies compute.Program so the solver can run without a GPU, and it is
// the program every test runs against.
package kernels

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/grid"
)

// Boundary policies for the Jacobi kernel's obstacle neighbours.
const (
	PolicyReflect = 0 // solid neighbour contributes the centre pressure
	PolicyZero    = 1 // solid neighbour contributes zero pressure
)

const solidThreshold = 0.5

// invocation is the state one kernel dispatch runs with.
type invocation struct {
	p        *Program
	bindings map[string]*compute.Buffer
	size     grid.Size
	// Extent of the dispatch clipped to the grid.
	nx, ny, nz int
	// Extent of a one-dimensional dispatch clipped to the particle count.
	n int
}

func (iv *invocation) buf(name string) []float32 { return iv.bindings[name].Data() }

func (iv *invocation) float(name string) float32 { return iv.p.floats[name] }

func (iv *invocation) vector(name string) mgl32.Vec3 { return iv.p.vectors[name] }

type kernelFunc func(iv *invocation)

type kernelDef struct {
	name     string
	fn       kernelFunc
	requires []string
	// particle kernels dispatch over the particle buffer instead of the grid
	particles bool
}

var kernelTable = []kernelDef{
	{name: compute.KernelAdvect, fn: advect,
		requires: []string{compute.BindReadR, compute.BindWriteR, compute.BindVelocity, compute.BindObstacles}},
	{name: compute.KernelAdvectVelocity, fn: advectVelocity,
		requires: []string{compute.BindVelocity, compute.BindObstacles}},
	{name: compute.KernelApplyBuoyancy, fn: applyBuoyancy,
		requires: []string{compute.BindVelocity, compute.BindDensity, compute.BindTemperature}},
	{name: compute.KernelApplyBuoyancySimple, fn: applyBuoyancySimple,
		requires: []string{compute.BindVelocity, compute.BindTemperature}},
	{name: compute.KernelImpulse, fn: impulse,
		requires: []string{compute.BindReadR, compute.BindWriteR}},
	{name: compute.KernelDivergence, fn: divergence,
		requires: []string{compute.BindWriteR, compute.BindVelocity, compute.BindObstacles}},
	{name: compute.KernelJacobi, fn: jacobi,
		requires: []string{compute.BindWriteR, compute.BindPressure, compute.BindDivergence, compute.BindObstacles}},
	{name: compute.KernelProjection, fn: projection,
		requires: []string{compute.BindVelocity, compute.BindPressure, compute.BindObstacles}},
	{name: compute.KernelBoundary, fn: boundary,
		requires: []string{compute.BindWriteR}},
	{name: compute.KernelAddSphereObstacle, fn: addSphereObstacle,
		requires: []string{compute.BindWriteR}},
	{name: compute.KernelAddSphereContainer, fn: addSphereContainer,
		requires: []string{compute.BindWriteR}},
	{name: compute.KernelConvertToVolume, fn: convertToVolume,
		requires: []string{compute.BindReadR, compute.BindWriteTex}},
	{name: compute.KernelParticleToVolume, fn: particleToVolume, particles: true,
		requires: []string{compute.BindParticles, compute.BindWriteTex}},
	{name: compute.KernelClearVolume, fn: clearVolume,
		requires: []string{compute.BindWriteTex}},
	{name: compute.KernelApplyParticlesVelocities, fn: applyParticlesVelocities, particles: true,
		requires: []string{compute.BindParticles}},
	{name: compute.KernelCalculateParticlesVelocity, fn: calculateParticlesVelocity, particles: true,
		requires: []string{compute.BindParticles, compute.BindVelocity, compute.BindTemperature}},
	{name: compute.KernelBurnParticle, fn: burnParticle, particles: true,
		requires: []string{compute.BindParticles, compute.BindTemperatureWrite, compute.BindDivergence}},
}

// Program runs the kernel table on a CPU device. Uniforms are shared by all
// kernels; buffer bindings are per kernel and persist between dispatches.
type Program struct {
	dev      *compute.CPUDevice
	floats   map[string]float32
	ints     map[string]int
	vectors  map[string]mgl32.Vec3
	bindings []map[string]*compute.Buffer
}

// NewProgram creates a program whose grid kernels run on dev's worker pool.
// A nil device runs every kernel on the calling goroutine.
func NewProgram(dev *compute.CPUDevice) *Program {
	p := &Program{
		dev:      dev,
		floats:   make(map[string]float32),
		ints:     make(map[string]int),
		vectors:  make(map[string]mgl32.Vec3),
		bindings: make([]map[string]*compute.Buffer, len(kernelTable)),
	}
	for i := range p.bindings {
		p.bindings[i] = make(map[string]*compute.Buffer)
	}
	return p
}

// FindKernel looks a kernel up by name.
func (p *Program) FindKernel(name string) (compute.Kernel, error) {
	for i, k := range kernelTable {
		if k.name == name {
			return compute.Kernel{Index: i, Name: name}, nil
		}
	}
	return compute.Kernel{}, fmt.Errorf("%w: %q", compute.ErrUnknownKernel, name)
}

func (p *Program) SetFloat(name string, v float32) { p.floats[name] = v }

func (p *Program) SetInt(name string, v int) { p.ints[name] = v }

func (p *Program) SetVector(name string, v mgl32.Vec3) { p.vectors[name] = v }

func (p *Program) SetBuffer(k compute.Kernel, binding string, b *compute.Buffer) {
	if k.Index < 0 || k.Index >= len(p.bindings) {
		return
	}
	if b == nil {
		delete(p.bindings[k.Index], binding)
		return
	}
	p.bindings[k.Index][binding] = b
}

// Dispatch runs the kernel over g thread groups. Threads outside the grid
// (or past the end of the particle buffer) do nothing.
func (p *Program) Dispatch(k compute.Kernel, g compute.Groups) error {
	if k.Index < 0 || k.Index >= len(kernelTable) || kernelTable[k.Index].name != k.Name {
		return fmt.Errorf("%w: %q", compute.ErrUnknownKernel, k.Name)
	}
	def := kernelTable[k.Index]
	bound := p.bindings[k.Index]

	for _, name := range def.requires {
		b, ok := bound[name]
		if !ok {
			return fmt.Errorf("%w: %s.%s", compute.ErrMissingBinding, def.name, name)
		}
		if b.Released() {
			return fmt.Errorf("%s.%s: %w", def.name, name, compute.ErrReleased)
		}
	}
	if def.name == compute.KernelAdvectVelocity || def.name == compute.KernelProjection ||
		def.name == compute.KernelApplyBuoyancy || def.name == compute.KernelApplyBuoyancySimple {
		if vectorWrite(bound) == nil {
			return fmt.Errorf("%w: %s.%s", compute.ErrMissingBinding, def.name, compute.BindWriteRGB)
		}
		if def.name == compute.KernelAdvectVelocity && vectorRead(bound) == nil {
			return fmt.Errorf("%w: %s.%s", compute.ErrMissingBinding, def.name, compute.BindReadRGB)
		}
	}

	sv := p.vectors[compute.UniformSize]
	size := grid.Size{X: int(sv.X()), Y: int(sv.Y()), Z: int(sv.Z())}
	iv := &invocation{p: p, bindings: bound, size: size}

	if def.particles {
		iv.n = min(g.X*compute.GroupSize, bound[compute.BindParticles].Count())
	} else {
		if def.name == compute.KernelClearVolume {
			iv.size = p.texSize(bound[compute.BindWriteTex], size)
		}
		if iv.size.Cells() <= 0 {
			return fmt.Errorf("%s: size uniform not set", def.name)
		}
		iv.nx = min(g.X*compute.GroupSize, iv.size.X)
		iv.ny = min(g.Y*compute.GroupSize, iv.size.Y)
		iv.nz = min(g.Z*compute.GroupSize, iv.size.Z)
	}

	def.fn(iv)
	return nil
}

// texSize returns the output texture extent: the tex_size uniform when it
// matches the texture's cell count, otherwise the grid size.
func (p *Program) texSize(tex *compute.Buffer, fallback grid.Size) grid.Size {
	tv, ok := p.vectors[compute.UniformTexSize]
	if ok {
		s := grid.Size{X: int(tv.X()), Y: int(tv.Y()), Z: int(tv.Z())}
		if s.Cells() == tex.Count() {
			return s
		}
	}
	return fallback
}

func vectorRead(b map[string]*compute.Buffer) *compute.Buffer {
	if r, ok := b[compute.BindReadRGB]; ok {
		return r
	}
	return b[compute.BindReadRG]
}

func vectorWrite(b map[string]*compute.Buffer) *compute.Buffer {
	if w, ok := b[compute.BindWriteRGB]; ok {
		return w
	}
	return b[compute.BindWriteRG]
}

// forCells runs fn for every cell of the dispatch extent, splitting rows
// across the device pool.
func (iv *invocation) forCells(fn func(x, y, z, i int)) {
	nx, ny, nz := iv.nx, iv.ny, iv.nz
	s := iv.size
	rows := ny * nz
	run := func(start, end int) {
		for r := start; r < end; r++ {
			y, z := r%ny, r/ny
			base := s.Index(0, y, z)
			for x := 0; x < nx; x++ {
				fn(x, y, z, base+x)
			}
		}
	}
	if iv.p.dev == nil {
		run(0, rows)
		return
	}
	iv.p.dev.Parallel(rows, run)
}

// forParticles runs fn for every particle of the dispatch extent.
func (iv *invocation) forParticles(fn func(i int)) {
	run := func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	}
	if iv.p.dev == nil {
		run(0, iv.n)
		return
	}
	iv.p.dev.Parallel(iv.n, run)
}
