package scene

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterSnapshotsPruneStaleHandles(t *testing.T) {
	r := NewRegistry()
	a, err := r.AddEmitter(mgl32.Vec3{0, 0, 0}, Emitter{Radius: 0.04, Density: 6, Temperature: 10})
	require.NoError(t, err)
	b, err := r.AddEmitter(mgl32.Vec3{1, 0, 0}, Emitter{Radius: 0.04, Density: 6, Temperature: 10})
	require.NoError(t, err)
	c, err := r.AddEmitter(mgl32.Vec3{2, 0, 0}, Emitter{Radius: 0.04, Density: 6, Temperature: 10})
	require.NoError(t, err)

	r.Destroy(b)
	r.SetEnabled(c, false)

	snaps, tracked := r.Emitters([]ecs.Entity{a, b, c})
	require.Len(t, snaps, 1)
	assert.Equal(t, a, snaps[0].Entity)
	assert.Equal(t, []ecs.Entity{a, c}, tracked, "disabled emitters stay tracked, dead ones are pruned")
	assert.Equal(t, 2, r.EmitterCount())
}

func TestEmitterLimit(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < MaxEmitters; i++ {
		_, err := r.AddEmitter(mgl32.Vec3{}, Emitter{Radius: 1})
		require.NoError(t, err)
	}
	_, err := r.AddEmitter(mgl32.Vec3{}, Emitter{Radius: 1})
	assert.True(t, errors.Is(err, ErrTooManyEmitters))
}

func TestEmittersWithin(t *testing.T) {
	r := NewRegistry()
	in, _ := r.AddEmitter(mgl32.Vec3{0.2, -0.1, 0}, Emitter{Radius: 1})
	_, _ = r.AddEmitter(mgl32.Vec3{3, 0, 0}, Emitter{Radius: 1})
	r.AddCollider(mgl32.Vec3{0, 0, 0}, 1, false)

	got := r.EmittersWithin(mgl32.Vec3{-0.5, -0.5, -0.5}, mgl32.Vec3{0.5, 0.5, 0.5})
	assert.Equal(t, []ecs.Entity{in}, got)
}

func TestColliderSnapshotScalesRadius(t *testing.T) {
	r := NewRegistry()
	e := r.AddCollider(mgl32.Vec3{1, 2, 3}, 0.5, true)
	r.SetScale(e, mgl32.Vec3{4, 1, 1})
	r.Move(e, mgl32.Vec3{0, 0, 0})

	snaps, tracked := r.Colliders([]ecs.Entity{e})
	require.Len(t, snaps, 1)
	assert.Equal(t, float32(2), snaps[0].Radius)
	assert.True(t, snaps[0].Container)
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, snaps[0].Position)
	assert.Len(t, tracked, 1)

	r.Destroy(e)
	r.Destroy(e)
	snaps, tracked = r.Colliders(tracked)
	assert.Empty(t, snaps)
	assert.Empty(t, tracked)
}

func TestPausedEmitterStaysTracked(t *testing.T) {
	r := NewRegistry()
	a, err := r.AddEmitter(mgl32.Vec3{}, Emitter{Radius: 0.04, Density: 6})
	require.NoError(t, err)
	require.True(t, r.Emitter(a).Emit, "new emitters start emitting")

	r.SetEmitting(a, false)
	snaps, tracked := r.Emitters([]ecs.Entity{a})
	assert.Empty(t, snaps)
	assert.Equal(t, []ecs.Entity{a}, tracked)

	r.SetEmitting(a, true)
	snaps, _ = r.Emitters([]ecs.Entity{a})
	assert.Len(t, snaps, 1)
}

func TestAccessorsCheckComponentKind(t *testing.T) {
	r := NewRegistry()
	em, err := r.AddEmitter(mgl32.Vec3{}, Emitter{Radius: 1})
	require.NoError(t, err)
	col := r.AddCollider(mgl32.Vec3{}, 1, false)

	assert.Nil(t, r.Emitter(col))
	assert.NotNil(t, r.Emitter(em))

	// A collider handle in the emitter list is pruned like a dead one.
	snaps, tracked := r.Emitters([]ecs.Entity{em, col})
	assert.Len(t, snaps, 1)
	assert.Equal(t, []ecs.Entity{em}, tracked)

	r.Destroy(col)
	assert.Equal(t, 1, r.EmitterCount(), "destroying a collider leaves the emitter count alone")
	r.Destroy(em)
	assert.Equal(t, 0, r.EmitterCount())
	assert.Nil(t, r.Emitter(em))
}
