package solver

import (
	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/grid"
)

// Output converts fields and particles into a volume texture for display.
type Output struct {
	stage
}

func NewOutput(prog compute.Program) *Output {
	return &Output{stage: newStage(prog)}
}

// ConvertToVolume copies src into tex, which has the grid's resolution.
func (o *Output) ConvertToVolume(size grid.Size, src, tex *compute.Buffer) error {
	if !o.Enabled() {
		return nil
	}
	k, err := o.kernel(compute.KernelConvertToVolume)
	if err != nil {
		return err
	}
	o.prog.SetVector(compute.UniformSize, size.Vec3())
	o.prog.SetBuffer(k, compute.BindReadR, src)
	o.prog.SetBuffer(k, compute.BindWriteTex, tex)
	return o.dispatch(k, groups(size))
}

// ParticlesToVolume splats count particles into tex, a texture of texSize.
// Unless trace is set the texture is cleared first.
func (o *Output) ParticlesToVolume(size grid.Size, particles *compute.Buffer, count int, tex *compute.Buffer, texSize grid.Size, trace bool) error {
	if !o.Enabled() {
		return nil
	}
	k, err := o.kernel(compute.KernelParticleToVolume)
	if err != nil {
		return err
	}
	o.prog.SetVector(compute.UniformSize, size.Vec3())
	o.prog.SetVector(compute.UniformTexSize, texSize.Vec3())
	o.prog.SetBuffer(k, compute.BindParticles, particles)
	o.prog.SetBuffer(k, compute.BindWriteTex, tex)

	if !trace {
		clearK, err := o.kernel(compute.KernelClearVolume)
		if err != nil {
			return err
		}
		o.prog.SetBuffer(clearK, compute.BindWriteTex, tex)
		if err := o.dispatch(clearK, groups(texSize)); err != nil {
			return err
		}
	}
	return o.dispatch(k, compute.GroupsForCount(count))
}
