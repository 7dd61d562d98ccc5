package kernels

import (
	"github.com/pthm-cable/detonate/compute"
)

// boundary marks the outer shell of the grid solid.
func boundary(iv *invocation) {
	dst := iv.buf(compute.BindWriteR)
	s := iv.size
	flat := s.Dims() == 2

	iv.forCells(func(x, y, z, i int) {
		edge := x == 0 || y == 0 || x == s.X-1 || y == s.Y-1
		if !flat {
			edge = edge || z == 0 || z == s.Z-1
		}
		if edge {
			dst[i] = 1
		}
	})
}

func sphereMask(iv *invocation, inside bool) {
	dst := iv.buf(compute.BindWriteR)
	r := iv.float(compute.UniformSphereRadius)
	centre := iv.vector(compute.UniformSpherePosition)
	r2 := r * r

	iv.forCells(func(x, y, z, i int) {
		in := cellPos(x, y, z).Sub(centre).LenSqr() <= r2
		if in == inside {
			dst[i] = 1
		}
	})
}

// addSphereObstacle marks cells inside the sphere solid.
func addSphereObstacle(iv *invocation) { sphereMask(iv, true) }

// addSphereContainer marks cells outside the sphere solid.
func addSphereContainer(iv *invocation) { sphereMask(iv, false) }
