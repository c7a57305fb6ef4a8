package ecs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/keeneyes/ecs"
)

func TestSpawnUnregisteredComponentFails(t *testing.T) {
	world := newTestWorld()
	defer world.Close()

	type notRegistered struct{ V int }
	_, err := world.Spawn(notRegistered{})
	require.ErrorIs(t, err, ecs.ErrComponentNotRegistered)

	// The failed spawn leaks no live entity.
	assert.Equal(t, 0, world.EntityCount())
}

func TestDespawnHooksPurgeSideTables(t *testing.T) {
	world := newTestWorld()
	defer world.Close()

	names := make(map[ecs.Entity]string)
	world.OnDespawn(func(e ecs.Entity) {
		delete(names, e)
	})

	e, err := world.Spawn(Name{Value: "goblin"})
	require.NoError(t, err)
	names[e] = "goblin"

	require.True(t, world.Despawn(e))
	assert.Empty(t, names)

	// Hooks do not run for dead handles.
	calls := 0
	world.OnDespawn(func(ecs.Entity) { calls++ })
	world.Despawn(e)
	assert.Zero(t, calls)
}

func TestWorldClearIsReusable(t *testing.T) {
	world := newTestWorld()
	defer world.Close()

	for i := 0; i < 10; i++ {
		_, err := world.Spawn(Position{X: float32(i)}, Velocity{})
		require.NoError(t, err)
	}
	require.Equal(t, 10, world.EntityCount())

	world.Clear()
	assert.Equal(t, 0, world.EntityCount())
	assert.Equal(t, 0, world.Archetypes().ArchetypeCount())

	// Registered components survive; spawning works immediately.
	e, err := world.Spawn(Position{X: 1}, Health{Current: 10, Max: 10})
	require.NoError(t, err)
	assert.True(t, world.IsAlive(e))
	assert.Equal(t, 1, world.EntityCount())
}

func TestWorldExtensions(t *testing.T) {
	world := newTestWorld()
	defer world.Close()

	type physicsConfig struct {
		Gravity float64
	}

	_, ok := ecs.GetExtension[physicsConfig](world)
	assert.False(t, ok)

	ecs.SetExtension(world, physicsConfig{Gravity: -9.81})
	cfg, ok := ecs.GetExtension[physicsConfig](world)
	require.True(t, ok)
	assert.Equal(t, -9.81, cfg.Gravity)

	// Overwrite in place.
	ecs.SetExtension(world, physicsConfig{Gravity: -1.62})
	cfg, _ = ecs.GetExtension[physicsConfig](world)
	assert.Equal(t, -1.62, cfg.Gravity)

	assert.True(t, ecs.RemoveExtension[physicsConfig](world))
	assert.False(t, ecs.RemoveExtension[physicsConfig](world))
	_, ok = ecs.GetExtension[physicsConfig](world)
	assert.False(t, ok)
}

func TestWorldsAreIsolated(t *testing.T) {
	a := newTestWorld()
	defer a.Close()
	b := newTestWorld()
	defer b.Close()

	ea, err := a.Spawn(Position{X: 1})
	require.NoError(t, err)
	_, err = b.Spawn(Velocity{})
	require.NoError(t, err)

	assert.Equal(t, 1, a.EntityCount())
	assert.Equal(t, 1, b.EntityCount())
	assert.False(t, ecs.Has[Position](b.Archetypes(), ea))
}

func TestSpawnManyWithSmallChunks(t *testing.T) {
	world := ecs.NewWorld(ecs.WithChunkCapacity(4), ecs.WithEntityCapacity(64))
	registerTestComponents(world.Registry())
	defer world.Close()

	entities := make([]ecs.Entity, 50)
	for i := range entities {
		e, err := world.Spawn(Position{X: float32(i)}, Health{Current: i})
		require.NoError(t, err)
		entities[i] = e
	}

	// Despawn every third entity to force swap-removals across chunks.
	for i := 0; i < len(entities); i += 3 {
		require.True(t, world.Despawn(entities[i]))
	}

	for i, e := range entities {
		if i%3 == 0 {
			assert.False(t, world.IsAlive(e))
			continue
		}
		pos, err := ecs.Get[Position](world.Archetypes(), e)
		require.NoError(t, err)
		assert.Equal(t, float32(i), pos.X)
		hp, err := ecs.Get[Health](world.Archetypes(), e)
		require.NoError(t, err)
		assert.Equal(t, i, hp.Current)
	}
}
