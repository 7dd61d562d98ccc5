package solver

import (
	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/grid"
)

// Advection transports fields along the velocity by backward tracing.
type Advection struct {
	stage
}

func NewAdvection(prog compute.Program) *Advection {
	return &Advection{stage: newStage(prog)}
}

// Scalar advects a scalar pair and swaps it. Each cell's result is the
// backtraced sample times dissipation.
func (a *Advection) Scalar(dt float32, size grid.Size, dissipation float32, field, velocity *grid.Pair, obstacles *grid.Field) error {
	if !a.Enabled() {
		return nil
	}
	k, err := a.kernel(compute.KernelAdvect)
	if err != nil {
		return err
	}
	a.prog.SetVector(compute.UniformSize, size.Vec3())
	a.prog.SetFloat(compute.UniformDT, dt)
	a.prog.SetFloat(compute.UniformDissipation, dissipation)

	a.prog.SetBuffer(k, compute.BindReadR, field.Read())
	a.prog.SetBuffer(k, compute.BindWriteR, field.Write())
	a.prog.SetBuffer(k, compute.BindVelocity, velocity.Read())
	a.prog.SetBuffer(k, compute.BindObstacles, obstacles.Buffer())
	if err := a.dispatch(k, groups(size)); err != nil {
		return err
	}
	field.Swap()
	return nil
}

// Velocity advects the velocity pair along itself and swaps it.
func (a *Advection) Velocity(dt float32, size grid.Size, dissipation float32, velocity *grid.Pair, obstacles *grid.Field) error {
	if !a.Enabled() {
		return nil
	}
	k, err := a.kernel(compute.KernelAdvectVelocity)
	if err != nil {
		return err
	}
	a.prog.SetVector(compute.UniformSize, size.Vec3())
	a.prog.SetFloat(compute.UniformDT, dt)
	a.prog.SetFloat(compute.UniformDissipation, dissipation)
	a.prog.SetFloat(compute.UniformForward, 1)
	a.prog.SetFloat(compute.UniformDecay, dissipation)

	read, write := vectorBindings(size)
	a.prog.SetBuffer(k, read, velocity.Read())
	a.prog.SetBuffer(k, write, velocity.Write())
	a.prog.SetBuffer(k, compute.BindVelocity, velocity.Read())
	a.prog.SetBuffer(k, compute.BindObstacles, obstacles.Buffer())
	if err := a.dispatch(k, groups(size)); err != nil {
		return err
	}
	velocity.Swap()
	return nil
}
