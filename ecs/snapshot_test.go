package ecs_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/keeneyes/ecs"
)

func TestSnapshotRoundTrip(t *testing.T) {
	world := newTestWorld()
	defer world.Close()

	e, err := world.Spawn(
		Position{X: 1.5, Y: -2},
		Name{Value: "warden"},
		Inventory{Items: []string{"sword", "torch"}},
		Player{},
	)
	require.NoError(t, err)

	snap, err := world.SnapshotEntity(e)
	require.NoError(t, err)
	require.Len(t, snap.Components, 4)

	restored, err := world.RestoreEntity(snap)
	require.NoError(t, err)
	assert.NotEqual(t, e, restored)

	m := world.Archetypes()
	pos, err := ecs.Get[Position](m, restored)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 1.5, Y: -2}, *pos)

	name, err := ecs.Get[Name](m, restored)
	require.NoError(t, err)
	assert.Equal(t, "warden", name.Value)

	inv, err := ecs.Get[Inventory](m, restored)
	require.NoError(t, err)
	assert.Equal(t, []string{"sword", "torch"}, inv.Items)

	assert.True(t, ecs.Has[Player](m, restored))
}

func TestSnapshotSurvivesSerialization(t *testing.T) {
	world := newTestWorld()
	defer world.Close()

	e, err := world.Spawn(Health{Current: 7, Max: 20})
	require.NoError(t, err)

	snap, err := world.SnapshotEntity(e)
	require.NoError(t, err)

	// Through the wire and back.
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded ecs.EntitySnapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))

	restored, err := world.RestoreEntity(&decoded)
	require.NoError(t, err)
	hp, err := ecs.Get[Health](world.Archetypes(), restored)
	require.NoError(t, err)
	assert.Equal(t, Health{Current: 7, Max: 20}, *hp)
}

func TestSnapshotUntrackedEntity(t *testing.T) {
	world := newTestWorld()
	defer world.Close()

	_, err := world.SnapshotEntity(ecs.Entity{ID: 99, Version: 1})
	assert.ErrorIs(t, err, ecs.ErrEntityNotTracked)

	e, err := world.Spawn(Position{})
	require.NoError(t, err)
	require.True(t, world.Despawn(e))

	_, err = world.SnapshotEntity(e)
	assert.ErrorIs(t, err, ecs.ErrEntityNotTracked)
}

func TestRestoreUnknownComponentType(t *testing.T) {
	world := newTestWorld()
	defer world.Close()

	snap := &ecs.EntitySnapshot{
		Components: []ecs.ComponentSnapshot{
			{Type: "ecs_test.NeverRegistered", Data: json.RawMessage(`{}`)},
		},
	}
	_, err := world.RestoreEntity(snap)
	assert.ErrorIs(t, err, ecs.ErrComponentNotRegistered)

	// The failed restore leaves no half-built entity behind.
	assert.Equal(t, 0, world.EntityCount())
}

func TestRestoreMalformedData(t *testing.T) {
	world := newTestWorld()
	defer world.Close()

	snap := &ecs.EntitySnapshot{
		Components: []ecs.ComponentSnapshot{
			{Type: "ecs_test.Position", Data: json.RawMessage(`"not an object"`)},
		},
	}
	_, err := world.RestoreEntity(snap)
	assert.Error(t, err)
	assert.Equal(t, 0, world.EntityCount())
}
