package compute

import (
	"github.com/go-gl/mathgl/mgl32"
)

// GroupSize is the thread-group edge length every grid kernel is written for.
const GroupSize = 8

// Kernel names. Programs are looked up by these exact strings.
const (
	KernelAdvect                     = "Advect"
	KernelAdvectVelocity             = "AdvectVelocity"
	KernelApplyBuoyancy              = "ApplyBuoyancy"
	KernelApplyBuoyancySimple        = "ApplyBuoyancySimple"
	KernelImpulse                    = "Impulse"
	KernelDivergence                 = "Divergence"
	KernelJacobi                     = "Jacobi"
	KernelProjection                 = "Projection"
	KernelBoundary                   = "Boundary"
	KernelAddSphereObstacle          = "AddSphereObstacle"
	KernelAddSphereContainer         = "AddSphereContainer"
	KernelConvertToVolume            = "ConvertToVolume"
	KernelParticleToVolume           = "ParticleToVolume"
	KernelClearVolume                = "ClearVolume"
	KernelApplyParticlesVelocities   = "ApplyParticlesVelocities"
	KernelCalculateParticlesVelocity = "CalculateParticlesVelocity"
	KernelBurnParticle               = "BurnParticle"
)

// Buffer binding names.
const (
	BindReadR            = "read_R"
	BindWriteR           = "write_R"
	BindReadRGB          = "read_RGB"
	BindWriteRGB         = "write_RGB"
	BindReadRG           = "read_RG"
	BindWriteRG          = "write_RG"
	BindVelocity         = "velocity"
	BindObstacles        = "obstacles"
	BindDensity          = "density"
	BindTemperature      = "temperature"
	BindTemperatureWrite = "temperature_write"
	BindPressure         = "pressure"
	BindDivergence       = "divergence"
	BindParticles        = "particles"
	BindWriteTex         = "write_tex"
)

// Uniform names.
const (
	UniformSize               = "size"
	UniformDT                 = "dt"
	UniformDissipation        = "dissipation"
	UniformForward            = "forward"
	UniformDecay              = "decay"
	UniformUp                 = "up"
	UniformBuoyancy           = "buoyancy"
	UniformWeight             = "weight"
	UniformAmbientTemperature = "ambient_temperature"
	UniformRadius             = "radius"
	UniformSourceAmount       = "source_amount"
	UniformSourcePos          = "source_pos"
	UniformSphereRadius       = "sphere_radius"
	UniformSpherePosition     = "sphere_position"
	UniformBoundaryPolicy     = "boundary_policy"
	UniformTexSize            = "tex_size"
	UniformParticleDrag       = "particle_drag"
	UniformParticleRadius     = "particle_radius"
	UniformThermalMass        = "thermal_mass"
	UniformBurnRate           = "burn_rate"
	UniformProducedHeat       = "produced_heat"
	UniformBurnThreshold      = "burn_threshold"
	UniformDivergenceAmount   = "divergence_amount"
)

// Kernel is a handle returned by Program.FindKernel.
type Kernel struct {
	Index int
	Name  string
}

// Groups is a dispatch extent in thread groups.
type Groups struct {
	X, Y, Z int
}

// Total returns the number of groups.
func (g Groups) Total() int { return g.X * g.Y * g.Z }

// GroupsFor returns ceil(dim/8) groups per axis, so a depth of 1 still
// dispatches one group.
func GroupsFor(x, y, z int) Groups {
	return Groups{X: ceilDiv(x, GroupSize), Y: ceilDiv(y, GroupSize), Z: ceilDiv(z, GroupSize)}
}

// GroupsForCount returns a one-dimensional extent covering n items.
func GroupsForCount(n int) Groups {
	return Groups{X: ceilDiv(n, GroupSize), Y: 1, Z: 1}
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}

// Program is a compiled set of kernels sharing uniforms. Buffer bindings are
// per kernel; uniforms are shared by every kernel of the program.
type Program interface {
	FindKernel(name string) (Kernel, error)
	SetFloat(name string, v float32)
	SetInt(name string, v int)
	SetVector(name string, v mgl32.Vec3)
	SetBuffer(k Kernel, binding string, b *Buffer)
	Dispatch(k Kernel, g Groups) error
}
