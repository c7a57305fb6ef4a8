package ecs_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/keeneyes/ecs"
)

func TestForEachEntity(t *testing.T) {
	world := newTestWorld()
	defer world.Close()

	spawned := make(map[ecs.Entity]bool)
	for i := 0; i < 10; i++ {
		e, err := world.Spawn(Position{}, Velocity{})
		require.NoError(t, err)
		spawned[e] = true
	}
	// A non-matching entity.
	_, err := world.Spawn(Health{})
	require.NoError(t, err)

	d := ecs.NewQueryDescriptor(world.Registry(), typesOf(Position{}, Velocity{}), nil)
	visited := 0
	ecs.ForEachEntity(world, d, func(e ecs.Entity) {
		assert.True(t, spawned[e])
		visited++
	})
	assert.Equal(t, 10, visited)
}

func TestForEachMutatesInPlace(t *testing.T) {
	world := newTestWorld()
	defer world.Close()

	entities := make([]ecs.Entity, 8)
	for i := range entities {
		e, err := world.Spawn(Health{Current: i, Max: 100})
		require.NoError(t, err)
		entities[i] = e
	}

	d := ecs.NewQueryDescriptor(world.Registry(), typesOf(Health{}), nil)
	require.NoError(t, ecs.ForEach(world, d, func(_ ecs.Entity, hp *Health) {
		hp.Current += 10
	}))

	for i, e := range entities {
		hp, err := ecs.Get[Health](world.Archetypes(), e)
		require.NoError(t, err)
		assert.Equal(t, i+10, hp.Current)
	}
}

func TestForEachParallel(t *testing.T) {
	world := ecs.NewWorld(ecs.WithChunkCapacity(16))
	registerTestComponents(world.Registry())
	defer world.Close()

	// Spread entities across several archetypes and chunks.
	const n = 200
	var want int64
	for i := 0; i < n; i++ {
		components := []any{Health{Current: i}}
		if i%2 == 0 {
			components = append(components, Position{})
		}
		if i%3 == 0 {
			components = append(components, Frozen{})
		}
		_, err := world.Spawn(components...)
		require.NoError(t, err)
		want += int64(i)
	}

	d := ecs.NewQueryDescriptor(world.Registry(), typesOf(Health{}), nil)
	var sum, calls int64
	err := ecs.ForEachParallel(world, d, func(_ ecs.Entity, hp *Health) error {
		atomic.AddInt64(&sum, int64(hp.Current))
		atomic.AddInt64(&calls, 1)
		hp.Max = hp.Current * 2
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(n), calls)
	assert.Equal(t, want, sum)

	// Writes through the pointer land in storage.
	d2 := ecs.NewQueryDescriptor(world.Registry(), typesOf(Health{}), nil)
	require.NoError(t, ecs.ForEach(world, d2, func(_ ecs.Entity, hp *Health) {
		assert.Equal(t, hp.Current*2, hp.Max)
	}))
}

func TestForEachParallelPropagatesError(t *testing.T) {
	world := newTestWorld()
	defer world.Close()

	for i := 0; i < 50; i++ {
		_, err := world.Spawn(Health{Current: i})
		require.NoError(t, err)
	}

	boom := errors.New("boom")
	d := ecs.NewQueryDescriptor(world.Registry(), typesOf(Health{}), nil)
	err := ecs.ForEachParallel(world, d, func(_ ecs.Entity, hp *Health) error {
		if hp.Current == 25 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestForEachValidatesComponent(t *testing.T) {
	world := newTestWorld()
	defer world.Close()

	_, err := world.Spawn(Position{}, Frozen{})
	require.NoError(t, err)

	// T must be part of the descriptor's required set.
	d := ecs.NewQueryDescriptor(world.Registry(), typesOf(Position{}), nil)
	err = ecs.ForEachParallel(world, d, func(ecs.Entity, *Velocity) error { return nil })
	assert.ErrorIs(t, err, ecs.ErrComponentMissing)

	// Tags have no column to hand out.
	dFrozen := ecs.NewQueryDescriptor(world.Registry(), typesOf(Frozen{}), nil)
	err = ecs.ForEach(world, dFrozen, func(ecs.Entity, *Frozen) {})
	assert.ErrorIs(t, err, ecs.ErrTagHasNoStorage)

	type never struct{ V int }
	err = ecs.ForEachParallel(world, d, func(ecs.Entity, *never) error { return nil })
	assert.ErrorIs(t, err, ecs.ErrComponentNotRegistered)
}

func BenchmarkForEachParallel(b *testing.B) {
	world := newTestWorld()
	defer world.Close()

	for i := 0; i < 10000; i++ {
		if _, err := world.Spawn(Position{X: float32(i)}, Velocity{DX: 1}); err != nil {
			b.Fatal(err)
		}
	}
	d := ecs.NewQueryDescriptor(world.Registry(), typesOf(Position{}, Velocity{}), nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := ecs.ForEachParallel(world, d, func(_ ecs.Entity, pos *Position) error {
			pos.X += 0.016
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}
