package kernels

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/detonate/grid"
)

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sample reads component comp of a strided field at a fractional cell
// position, trilinear and clamped to the grid.
func sample(data []float32, stride, comp int, s grid.Size, x, y, z float32) float32 {
	x = clampf(x, 0, float32(s.X-1))
	y = clampf(y, 0, float32(s.Y-1))
	z = clampf(z, 0, float32(s.Z-1))

	x0, y0, z0 := int(x), int(y), int(z)
	x1, y1, z1 := min(x0+1, s.X-1), min(y0+1, s.Y-1), min(z0+1, s.Z-1)
	fx, fy, fz := x-float32(x0), y-float32(y0), z-float32(z0)

	at := func(ix, iy, iz int) float32 {
		return data[s.Index(ix, iy, iz)*stride+comp]
	}

	c00 := at(x0, y0, z0)*(1-fx) + at(x1, y0, z0)*fx
	c10 := at(x0, y1, z0)*(1-fx) + at(x1, y1, z0)*fx
	c01 := at(x0, y0, z1)*(1-fx) + at(x1, y0, z1)*fx
	c11 := at(x0, y1, z1)*(1-fx) + at(x1, y1, z1)*fx

	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy
	return c0*(1-fz) + c1*fz
}

// Velocity components live on cell faces: component c of cell i sits at
// i + 0.5 along axis c.
func sampleComponent(vel []float32, s grid.Size, c int, p mgl32.Vec3) float32 {
	q := p
	q[c] -= 0.5
	return sample(vel, 3, c, s, q.X(), q.Y(), q.Z())
}

// velocityAt interpolates the full velocity vector at a cell-space position.
func velocityAt(vel []float32, s grid.Size, p mgl32.Vec3) mgl32.Vec3 {
	v := mgl32.Vec3{
		sampleComponent(vel, s, 0, p),
		sampleComponent(vel, s, 1, p),
	}
	if s.Dims() == 3 {
		v[2] = sampleComponent(vel, s, 2, p)
	}
	return v
}

// solid reports whether cell (x, y, z) is outside the grid or an obstacle.
func solid(obs []float32, s grid.Size, x, y, z int) bool {
	if !s.Contains(x, y, z) {
		return true
	}
	return obs[s.Index(x, y, z)] > solidThreshold
}

var axes = [3][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// openFace reports whether the face between cell (x, y, z) and its
// neighbour along +axis carries flow.
func openFace(obs []float32, s grid.Size, x, y, z, axis int) bool {
	d := axes[axis]
	return !solid(obs, s, x, y, z) && !solid(obs, s, x+d[0], y+d[1], z+d[2])
}

func cellPos(x, y, z int) mgl32.Vec3 {
	return mgl32.Vec3{float32(x), float32(y), float32(z)}
}

// nearestCell maps a cell-space coordinate onto an axis resampled by scale
// and returns the index of the cell whose centre is closest.
func nearestCell(p, scale float32) int {
	return int(math.Floor(float64((p + 0.5) * scale)))
}
