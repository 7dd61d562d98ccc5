// Package scene is the registry of emitters and sphere colliders that scene
// logic places around a simulation. The simulation reads per-step snapshots
// from it and never mutates it.
package scene

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"
)

// MaxEmitters is the registry capacity for emitters.
const MaxEmitters = 50

// ErrTooManyEmitters is returned by AddEmitter when the registry is full.
var ErrTooManyEmitters = errors.New("scene: emitter limit reached")

// Transform places an entity in world space.
type Transform struct {
	Position mgl32.Vec3
	Scale    mgl32.Vec3
}

// Emitter injects density and heat each step while Emit is set.
type Emitter struct {
	Radius      float32
	Density     float32
	Temperature float32
	Emit        bool
}

// Collider is a sphere obstacle, or for a container the space outside it.
type Collider struct {
	Radius    float32
	Container bool
}

// Active toggles an entity without removing it.
type Active struct {
	Enabled bool
}

// EmitterSnapshot is the per-step view of one enabled emitter.
type EmitterSnapshot struct {
	Entity      ecs.Entity
	Position    mgl32.Vec3 // world space
	Radius      float32    // world space
	Density     float32
	Temperature float32
}

// ColliderSnapshot is the per-step view of one enabled collider.
type ColliderSnapshot struct {
	Entity    ecs.Entity
	Position  mgl32.Vec3
	Radius    float32
	Container bool
}

// Registry owns the scene's emitters and colliders.
type Registry struct {
	world *ecs.World

	emitterMapper  *ecs.Map3[Transform, Emitter, Active]
	colliderMapper *ecs.Map3[Transform, Collider, Active]
	emitterFilter  *ecs.Filter3[Transform, Emitter, Active]

	transformMap *ecs.Map[Transform]
	emitterMap   *ecs.Map[Emitter]
	colliderMap  *ecs.Map[Collider]
	activeMap    *ecs.Map[Active]

	emitters int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	world := ecs.NewWorld()
	return &Registry{
		world:          world,
		emitterMapper:  ecs.NewMap3[Transform, Emitter, Active](world),
		colliderMapper: ecs.NewMap3[Transform, Collider, Active](world),
		emitterFilter:  ecs.NewFilter3[Transform, Emitter, Active](world),
		transformMap:   ecs.NewMap[Transform](world),
		emitterMap:     ecs.NewMap[Emitter](world),
		colliderMap:    ecs.NewMap[Collider](world),
		activeMap:      ecs.NewMap[Active](world),
	}
}

func unitTransform(pos mgl32.Vec3) Transform {
	return Transform{Position: pos, Scale: mgl32.Vec3{1, 1, 1}}
}

// AddEmitter registers an enabled emitter at pos. It starts emitting; use
// SetEmitting to pause it while it stays tracked.
func (r *Registry) AddEmitter(pos mgl32.Vec3, e Emitter) (ecs.Entity, error) {
	if r.emitters >= MaxEmitters {
		return ecs.Entity{}, fmt.Errorf("%w (%d)", ErrTooManyEmitters, MaxEmitters)
	}
	e.Emit = true
	t := unitTransform(pos)
	active := Active{Enabled: true}
	entity := r.emitterMapper.NewEntity(&t, &e, &active)
	r.emitters++
	return entity, nil
}

// AddCollider registers an enabled sphere collider at pos.
func (r *Registry) AddCollider(pos mgl32.Vec3, radius float32, container bool) ecs.Entity {
	t := unitTransform(pos)
	c := Collider{Radius: radius, Container: container}
	active := Active{Enabled: true}
	return r.colliderMapper.NewEntity(&t, &c, &active)
}

// Destroy removes an entity. Destroying a dead entity is a no-op.
func (r *Registry) Destroy(e ecs.Entity) {
	if !r.world.Alive(e) {
		return
	}
	if r.emitterMap.Has(e) {
		r.emitters--
	}
	r.world.RemoveEntity(e)
}

// Alive reports whether e is still registered.
func (r *Registry) Alive(e ecs.Entity) bool { return r.world.Alive(e) }

// SetEnabled toggles an entity.
func (r *Registry) SetEnabled(e ecs.Entity, enabled bool) {
	if !r.world.Alive(e) || !r.activeMap.Has(e) {
		return
	}
	r.activeMap.Get(e).Enabled = enabled
}

// SetEmitting pauses or resumes an emitter's injection.
func (r *Registry) SetEmitting(e ecs.Entity, emit bool) {
	if em := r.Emitter(e); em != nil {
		em.Emit = emit
	}
}

// Move sets an entity's world position.
func (r *Registry) Move(e ecs.Entity, pos mgl32.Vec3) {
	if !r.world.Alive(e) || !r.transformMap.Has(e) {
		return
	}
	r.transformMap.Get(e).Position = pos
}

// SetScale sets an entity's world scale. Sphere radii scale with X.
func (r *Registry) SetScale(e ecs.Entity, scale mgl32.Vec3) {
	if !r.world.Alive(e) || !r.transformMap.Has(e) {
		return
	}
	r.transformMap.Get(e).Scale = scale
}

// Emitter returns a pointer to an emitter's settings, or nil.
func (r *Registry) Emitter(e ecs.Entity) *Emitter {
	if !r.world.Alive(e) || !r.emitterMap.Has(e) {
		return nil
	}
	return r.emitterMap.Get(e)
}

// EmitterCount returns the number of registered emitters.
func (r *Registry) EmitterCount() int { return r.emitters }

// EmittersWithin returns the emitters whose position lies inside the box.
func (r *Registry) EmittersWithin(lo, hi mgl32.Vec3) []ecs.Entity {
	var out []ecs.Entity
	query := r.emitterFilter.Query()
	for query.Next() {
		t, _, _ := query.Get()
		if inBox(t.Position, lo, hi) {
			out = append(out, query.Entity())
		}
	}
	return out
}

func inBox(p, lo, hi mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < lo[i] || p[i] > hi[i] {
			return false
		}
	}
	return true
}

// Emitters snapshots the enabled, emitting emitters among tracked. Dead handles are
// pruned from the returned tracked list; disabled ones are kept but skipped.
func (r *Registry) Emitters(tracked []ecs.Entity) ([]EmitterSnapshot, []ecs.Entity) {
	var out []EmitterSnapshot
	kept := tracked[:0]
	for _, e := range tracked {
		if !r.world.Alive(e) || !r.emitterMap.Has(e) {
			slog.Debug("pruning stale emitter", "entity", e.ID())
			continue
		}
		kept = append(kept, e)
		if !r.activeMap.Get(e).Enabled {
			continue
		}
		em := r.emitterMap.Get(e)
		if !em.Emit {
			continue
		}
		t := r.transformMap.Get(e)
		out = append(out, EmitterSnapshot{
			Entity:      e,
			Position:    t.Position,
			Radius:      em.Radius * t.Scale.X(),
			Density:     em.Density,
			Temperature: em.Temperature,
		})
	}
	return out, kept
}

// Colliders snapshots the enabled colliders among tracked, pruning dead
// handles the same way as Emitters.
func (r *Registry) Colliders(tracked []ecs.Entity) ([]ColliderSnapshot, []ecs.Entity) {
	var out []ColliderSnapshot
	kept := tracked[:0]
	for _, e := range tracked {
		if !r.world.Alive(e) || !r.colliderMap.Has(e) {
			slog.Debug("pruning stale collider", "entity", e.ID())
			continue
		}
		kept = append(kept, e)
		if !r.activeMap.Get(e).Enabled {
			continue
		}
		t := r.transformMap.Get(e)
		c := r.colliderMap.Get(e)
		out = append(out, ColliderSnapshot{
			Entity:    e,
			Position:  t.Position,
			Radius:    c.Radius * t.Scale.X(),
			Container: c.Container,
		})
	}
	return out, kept
}
