package sim

import "github.com/pthm-cable/detonate/compute"

// Programs holds the program each stage dispatches on. A nil program turns
// its stage off; the step still runs without it.
type Programs struct {
	Obstacles  compute.Program
	Advection  compute.Program
	Buoyancy   compute.Program
	Impulse    compute.Program
	Divergence compute.Program
	Jacobi     compute.Program
	Projection compute.Program
	Particles  compute.Program
	Output     compute.Program
}

// UniformPrograms uses one program for every stage.
func UniformPrograms(p compute.Program) Programs {
	return Programs{
		Obstacles:  p,
		Advection:  p,
		Buoyancy:   p,
		Impulse:    p,
		Divergence: p,
		Jacobi:     p,
		Projection: p,
		Particles:  p,
		Output:     p,
	}
}

// stages lists the programs with their stage names.
func (p *Programs) stages() []struct {
	name string
	prog *compute.Program
} {
	return []struct {
		name string
		prog *compute.Program
	}{
		{"obstacles", &p.Obstacles},
		{"advection", &p.Advection},
		{"buoyancy", &p.Buoyancy},
		{"impulse", &p.Impulse},
		{"divergence", &p.Divergence},
		{"jacobi", &p.Jacobi},
		{"projection", &p.Projection},
		{"particles", &p.Particles},
		{"output", &p.Output},
	}
}

// Missing returns the names of stages without a program.
func (p Programs) Missing() []string {
	var out []string
	for _, st := range p.stages() {
		if *st.prog == nil {
			out = append(out, st.name)
		}
	}
	return out
}

// counted wraps every program in a dispatch counter. The returned recorders
// are drained after each step.
func (p Programs) counted() (Programs, []*compute.Recorder) {
	var recs []*compute.Recorder
	for _, st := range p.stages() {
		if *st.prog == nil {
			continue
		}
		r := compute.NewCounter(*st.prog)
		*st.prog = r
		recs = append(recs, r)
	}
	return p, recs
}
