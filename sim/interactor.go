package sim

import (
	"slices"

	"github.com/mlange-42/ark/ecs"
)

// TrackEmittersInBounds refreshes the tracked emitter list: emitters that
// left the volume are dropped and emitters now inside it are added. Disabled
// emitters are tracked too, they just do not emit.
func (s *Simulation) TrackEmittersInBounds() {
	if s.registry == nil {
		return
	}
	lo, hi := s.transform.Bounds()
	inside := s.registry.EmittersWithin(lo, hi)

	kept := s.trackedEmitters[:0]
	for _, e := range s.trackedEmitters {
		if slices.Contains(inside, e) {
			kept = append(kept, e)
		}
	}
	for _, e := range inside {
		if !slices.Contains(kept, e) {
			kept = append(kept, e)
		}
	}
	s.trackedEmitters = kept
}

// TrackedEmitters returns a copy of the tracked emitter list.
func (s *Simulation) TrackedEmitters() []ecs.Entity {
	return slices.Clone(s.trackedEmitters)
}

// TrackCollider adds a collider to the obstacle pass. Adding twice is a no-op.
func (s *Simulation) TrackCollider(e ecs.Entity) {
	if !slices.Contains(s.trackedColliders, e) {
		s.trackedColliders = append(s.trackedColliders, e)
	}
}

// UntrackCollider removes a collider from the obstacle pass.
func (s *Simulation) UntrackCollider(e ecs.Entity) {
	if i := slices.Index(s.trackedColliders, e); i >= 0 {
		s.trackedColliders = slices.Delete(s.trackedColliders, i, i+1)
	}
}

// TrackedColliders returns a copy of the tracked collider list.
func (s *Simulation) TrackedColliders() []ecs.Entity {
	return slices.Clone(s.trackedColliders)
}
