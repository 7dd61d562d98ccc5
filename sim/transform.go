package sim

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform places the simulation volume in the world. The volume is an
// axis-aligned box centred on Position with extent Scale.
type Transform struct {
	Position mgl32.Vec3
	Scale    mgl32.Vec3
}

// Bounds returns the world-space corners of the volume.
func (t Transform) Bounds() (lo, hi mgl32.Vec3) {
	half := t.Scale.Mul(0.5)
	return t.Position.Sub(half), t.Position.Add(half)
}

// Contains reports whether p lies strictly inside the volume.
func (t Transform) Contains(p mgl32.Vec3) bool {
	lo, hi := t.Bounds()
	for i := 0; i < 3; i++ {
		if p[i] <= lo[i] || p[i] >= hi[i] {
			return false
		}
	}
	return true
}

// normalized maps a world position into [0,1] across the volume.
func (t Transform) normalized(world mgl32.Vec3) mgl32.Vec3 {
	rel := world.Sub(t.Position).Add(t.Scale.Mul(0.5))
	return mgl32.Vec3{rel.X() / t.Scale.X(), rel.Y() / t.Scale.Y(), rel.Z() / t.Scale.Z()}
}

func sanitizeScale(s mgl32.Vec3) mgl32.Vec3 {
	for i := range s {
		if s[i] == 0 {
			s[i] = 1
		}
	}
	return s
}

// Transform returns the current placement.
func (s *Simulation) Transform() Transform { return s.transform }

// SetTransform moves or resizes the volume and notifies listeners. A zero
// scale component is treated as 1.
func (s *Simulation) SetTransform(position, scale mgl32.Vec3) {
	s.transform = Transform{Position: position, Scale: sanitizeScale(scale)}
	for _, fn := range s.listeners {
		fn(s.transform)
	}
}

// OnTransformChange registers fn to run after every SetTransform.
func (s *Simulation) OnTransformChange(fn func(Transform)) {
	s.listeners = append(s.listeners, fn)
}

// ToGridSpace converts a world position to cell coordinates, where integer
// coordinates are cell centres.
func (s *Simulation) ToGridSpace(world mgl32.Vec3) mgl32.Vec3 {
	n := s.transform.normalized(world)
	return mgl32.Vec3{
		n.X()*float32(s.size.X) - 0.5,
		n.Y()*float32(s.size.Y) - 0.5,
		n.Z()*float32(s.size.Z) - 0.5,
	}
}

// RadiusToGrid converts a world radius to cells. Radii follow the X axis.
func (s *Simulation) RadiusToGrid(r float32) float32 {
	return r / s.transform.Scale.X() * float32(s.size.X)
}
