package solver

import (
	"fmt"

	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/grid"
)

// Divergence measures the net outflow of every cell.
type Divergence struct {
	stage
}

func NewDivergence(prog compute.Program) *Divergence {
	return &Divergence{stage: newStage(prog)}
}

// Compute overwrites out with the divergence of velocity. Solid cells and
// faces against them count as zero flow.
func (d *Divergence) Compute(size grid.Size, velocity *grid.Pair, obstacles, out *grid.Field) error {
	if !d.Enabled() {
		return nil
	}
	k, err := d.kernel(compute.KernelDivergence)
	if err != nil {
		return err
	}
	d.prog.SetVector(compute.UniformSize, size.Vec3())
	d.prog.SetBuffer(k, compute.BindWriteR, out.Buffer())
	d.prog.SetBuffer(k, compute.BindVelocity, velocity.Read())
	d.prog.SetBuffer(k, compute.BindObstacles, obstacles.Buffer())
	return d.dispatch(k, groups(size))
}

// BoundaryPolicy selects what a solid neighbour contributes to a Jacobi pass.
type BoundaryPolicy int

const (
	// Reflect uses the centre cell's own pressure for solid neighbours.
	Reflect BoundaryPolicy = iota
	// Zero treats solid neighbours as zero pressure.
	Zero
)

// ParseBoundaryPolicy maps a config name to a policy.
func ParseBoundaryPolicy(name string) (BoundaryPolicy, error) {
	switch name {
	case "", "reflect":
		return Reflect, nil
	case "zero":
		return Zero, nil
	}
	return Reflect, fmt.Errorf("unknown boundary policy %q", name)
}

func (p BoundaryPolicy) String() string {
	if p == Zero {
		return "zero"
	}
	return "reflect"
}

// Jacobi relaxes pressure against the divergence field.
type Jacobi struct {
	stage
	Policy BoundaryPolicy
}

func NewJacobi(prog compute.Program, policy BoundaryPolicy) *Jacobi {
	return &Jacobi{stage: newStage(prog), Policy: policy}
}

// Solve runs iterations sequential passes, swapping pressure after each so
// every pass reads the previous pass's full result.
func (j *Jacobi) Solve(size grid.Size, div, obstacles *grid.Field, iterations int, pressure *grid.Pair) error {
	if !j.Enabled() {
		return nil
	}
	k, err := j.kernel(compute.KernelJacobi)
	if err != nil {
		return err
	}
	j.prog.SetVector(compute.UniformSize, size.Vec3())
	j.prog.SetInt(compute.UniformBoundaryPolicy, int(j.Policy))
	j.prog.SetBuffer(k, compute.BindDivergence, div.Buffer())
	j.prog.SetBuffer(k, compute.BindObstacles, obstacles.Buffer())

	g := groups(size)
	for i := 0; i < iterations; i++ {
		j.prog.SetBuffer(k, compute.BindWriteR, pressure.Write())
		j.prog.SetBuffer(k, compute.BindPressure, pressure.Read())
		if err := j.dispatch(k, g); err != nil {
			return fmt.Errorf("jacobi iteration %d: %w", i, err)
		}
		pressure.Swap()
	}
	return nil
}

// Projection removes the pressure gradient from velocity.
type Projection struct {
	stage
}

func NewProjection(prog compute.Program) *Projection {
	return &Projection{stage: newStage(prog)}
}

// Project subtracts the gradient of pressure from velocity and swaps it.
func (p *Projection) Project(size grid.Size, pressure *grid.Pair, obstacles *grid.Field, velocity *grid.Pair) error {
	if !p.Enabled() {
		return nil
	}
	k, err := p.kernel(compute.KernelProjection)
	if err != nil {
		return err
	}
	p.prog.SetVector(compute.UniformSize, size.Vec3())
	_, write := vectorBindings(size)
	p.prog.SetBuffer(k, compute.BindObstacles, obstacles.Buffer())
	p.prog.SetBuffer(k, compute.BindPressure, pressure.Read())
	p.prog.SetBuffer(k, compute.BindVelocity, velocity.Read())
	p.prog.SetBuffer(k, write, velocity.Write())
	if err := p.dispatch(k, groups(size)); err != nil {
		return err
	}
	velocity.Swap()
	return nil
}
