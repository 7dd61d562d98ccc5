package kernels

import (
	"math"

	"github.com/pthm-cable/detonate/compute"
)

// advect traces each cell centre back along the velocity and samples the
// source field there. Solid cells are cleared.
func advect(iv *invocation) {
	src := iv.buf(compute.BindReadR)
	dst := iv.buf(compute.BindWriteR)
	vel := iv.buf(compute.BindVelocity)
	obs := iv.buf(compute.BindObstacles)
	dt := iv.float(compute.UniformDT)
	dissipation := iv.float(compute.UniformDissipation)
	s := iv.size

	iv.forCells(func(x, y, z, i int) {
		if obs[i] > solidThreshold {
			dst[i] = 0
			return
		}
		p := cellPos(x, y, z)
		back := p.Sub(velocityAt(vel, s, p).Mul(dt))
		dst[i] = sample(src, 1, 0, s, back.X(), back.Y(), back.Z()) * dissipation
	})
}

// advectVelocity moves each face velocity along the field itself. Faces that
// touch a solid cell carry no flow.
func advectVelocity(iv *invocation) {
	src := vectorRead(iv.bindings).Data()
	dst := vectorWrite(iv.bindings).Data()
	vel := iv.buf(compute.BindVelocity)
	obs := iv.buf(compute.BindObstacles)
	dt := iv.float(compute.UniformDT) * iv.float(compute.UniformForward)
	decay := iv.float(compute.UniformDecay)
	s := iv.size
	dims := s.Dims()

	iv.forCells(func(x, y, z, i int) {
		for c := 0; c < 3; c++ {
			if c >= dims || !openFace(obs, s, x, y, z, c) {
				dst[i*3+c] = 0
				continue
			}
			face := cellPos(x, y, z)
			face[c] += 0.5
			back := face.Sub(velocityAt(vel, s, face).Mul(dt))
			dst[i*3+c] = sampleComponent(src, s, c, back) * decay
		}
	})
}

// buoyancyForce is the scalar force along up for one cell.
type buoyancyForce func(i int) float32

func applyForce(iv *invocation, force buoyancyForce) {
	src := iv.buf(compute.BindVelocity)
	dst := vectorWrite(iv.bindings).Data()
	dt := iv.float(compute.UniformDT)
	up := iv.vector(compute.UniformUp)

	iv.forCells(func(x, y, z, i int) {
		f := force(i) * dt
		dst[i*3] = src[i*3] + f*up.X()
		dst[i*3+1] = src[i*3+1] + f*up.Y()
		dst[i*3+2] = src[i*3+2] + f*up.Z()
	})
}

func applyBuoyancy(iv *invocation) {
	temp := iv.buf(compute.BindTemperature)
	dens := iv.buf(compute.BindDensity)
	b := iv.float(compute.UniformBuoyancy)
	w := iv.float(compute.UniformWeight)
	ambient := iv.float(compute.UniformAmbientTemperature)

	applyForce(iv, func(i int) float32 {
		return b*(temp[i]-ambient) - w*dens[i]
	})
}

func applyBuoyancySimple(iv *invocation) {
	temp := iv.buf(compute.BindTemperature)
	b := iv.float(compute.UniformBuoyancy)
	ambient := iv.float(compute.UniformAmbientTemperature)

	applyForce(iv, func(i int) float32 {
		return b * (temp[i] - ambient)
	})
}

// impulse adds a gaussian splat of source_amount*dt inside radius.
func impulse(iv *invocation) {
	src := iv.buf(compute.BindReadR)
	dst := iv.buf(compute.BindWriteR)
	dt := iv.float(compute.UniformDT)
	amount := iv.float(compute.UniformSourceAmount)
	r := iv.float(compute.UniformRadius)
	pos := iv.vector(compute.UniformSourcePos)
	r2 := r * r

	iv.forCells(func(x, y, z, i int) {
		d2 := cellPos(x, y, z).Sub(pos).LenSqr()
		v := src[i]
		if r > 0 && d2 <= r2 {
			v += amount * dt * float32(math.Exp(float64(-d2/r2)))
		}
		dst[i] = v
	})
}

// divergence sums the net outflow through each fluid cell's faces.
func divergence(iv *invocation) {
	dst := iv.buf(compute.BindWriteR)
	vel := iv.buf(compute.BindVelocity)
	obs := iv.buf(compute.BindObstacles)
	s := iv.size
	dims := s.Dims()

	flux := func(x, y, z, c int) float32 {
		if !openFace(obs, s, x, y, z, c) {
			return 0
		}
		return vel[s.Index(x, y, z)*3+c]
	}

	iv.forCells(func(x, y, z, i int) {
		if obs[i] > solidThreshold {
			dst[i] = 0
			return
		}
		var d float32
		for c := 0; c < dims; c++ {
			a := axes[c]
			d += flux(x, y, z, c) - flux(x-a[0], y-a[1], z-a[2], c)
		}
		dst[i] = d
	})
}

// jacobi relaxes the pressure Poisson equation by one pass.
func jacobi(iv *invocation) {
	p := iv.buf(compute.BindPressure)
	dst := iv.buf(compute.BindWriteR)
	div := iv.buf(compute.BindDivergence)
	obs := iv.buf(compute.BindObstacles)
	policy := iv.p.ints[compute.UniformBoundaryPolicy]
	s := iv.size
	dims := s.Dims()
	count := float32(2 * dims)

	iv.forCells(func(x, y, z, i int) {
		if obs[i] > solidThreshold {
			dst[i] = 0
			return
		}
		centre := p[i]
		var sum float32
		for c := 0; c < dims; c++ {
			a := axes[c]
			for _, sign := range [2]int{1, -1} {
				nx, ny, nz := x+sign*a[0], y+sign*a[1], z+sign*a[2]
				if solid(obs, s, nx, ny, nz) {
					if policy == PolicyReflect {
						sum += centre
					}
					continue
				}
				sum += p[s.Index(nx, ny, nz)]
			}
		}
		dst[i] = (sum - div[i]) / count
	})
}

// projection subtracts the pressure gradient across every open face.
func projection(iv *invocation) {
	vel := iv.buf(compute.BindVelocity)
	p := iv.buf(compute.BindPressure)
	obs := iv.buf(compute.BindObstacles)
	dst := vectorWrite(iv.bindings).Data()
	s := iv.size
	dims := s.Dims()

	iv.forCells(func(x, y, z, i int) {
		for c := 0; c < 3; c++ {
			if c >= dims || !openFace(obs, s, x, y, z, c) {
				dst[i*3+c] = 0
				continue
			}
			a := axes[c]
			grad := p[s.Index(x+a[0], y+a[1], z+a[2])] - p[i]
			dst[i*3+c] = vel[i*3+c] - grad
		}
	})
}
