// Package grid owns the simulation's field buffers: their dimensions, the
// double-buffered read/write pairs, and allocation as a single unit.
package grid

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Size is a grid extent in cells. Z == 1 marks a 2D grid.
type Size struct {
	X, Y, Z int
}

// Dims returns 2 for a flat grid, 3 otherwise.
func (s Size) Dims() int {
	if s.Z == 1 {
		return 2
	}
	return 3
}

// Cells returns the number of cells.
func (s Size) Cells() int { return s.X * s.Y * s.Z }

// Index maps a cell coordinate to its linear offset, X fastest.
func (s Size) Index(x, y, z int) int { return x + s.X*(y+s.Y*z) }

// Contains reports whether a cell coordinate is inside the grid.
func (s Size) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < s.X && y < s.Y && z < s.Z
}

// Vec3 returns the extent as a float vector, the form kernels receive it in.
func (s Size) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{float32(s.X), float32(s.Y), float32(s.Z)}
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%dx%d", s.X, s.Y, s.Z)
}

// ClosestPowerOfTwo returns the power of two nearest n. Ties round up and
// values below 1 snap to 1.
func ClosestPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	lo := 1
	for lo*2 <= n {
		lo *= 2
	}
	if lo == n {
		return n
	}
	hi := lo * 2
	if n-lo < hi-n {
		return lo
	}
	return hi
}

// Snap snaps each requested dimension to a power of two. dims == 2 forces a
// depth of 1.
func Snap(width, height, depth, dims int) Size {
	s := Size{
		X: ClosestPowerOfTwo(width),
		Y: ClosestPowerOfTwo(height),
		Z: ClosestPowerOfTwo(depth),
	}
	if dims == 2 {
		s.Z = 1
	}
	return s
}
