package ecs

import (
	"reflect"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// ComponentSnapshot is one serialized component record: the registered type
// name plus its JSON-encoded value.
type ComponentSnapshot struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EntitySnapshot is the boundary format the external save pipeline consumes:
// a type-erased capture of one entity's components.
type EntitySnapshot struct {
	Components []ComponentSnapshot `json:"components"`
}

// SnapshotEntity captures the entity's current components. Errors for
// untracked or stale handles.
func (w *World) SnapshotEntity(e Entity) (*EntitySnapshot, error) {
	if _, ok := w.archetypes.TryGetEntityLocation(e); !ok {
		return nil, eris.Wrapf(ErrEntityNotTracked, "entity %d is not tracked", e.ID)
	}
	snap := &EntitySnapshot{}
	for t, value := range w.archetypes.GetComponents(e) {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, eris.Wrapf(err, "encoding component %s of entity %d", t, e.ID)
		}
		snap.Components = append(snap.Components, ComponentSnapshot{
			Type: t.String(),
			Data: data,
		})
	}
	return snap, nil
}

// RestoreEntity spawns a new entity from a snapshot. Every component type in
// the snapshot must be registered in this world.
func (w *World) RestoreEntity(snap *EntitySnapshot) (Entity, error) {
	e, err := w.Spawn()
	if err != nil {
		return NilEntity, err
	}
	for _, cs := range snap.Components {
		info := w.registry.getByName(cs.Type)
		if info == nil {
			w.Despawn(e)
			return NilEntity, eris.Wrapf(ErrComponentNotRegistered, "component type %s", cs.Type)
		}
		value := reflect.New(info.Type)
		if err := json.Unmarshal(cs.Data, value.Interface()); err != nil {
			w.Despawn(e)
			return NilEntity, eris.Wrapf(err, "decoding component %s", cs.Type)
		}
		if err := w.archetypes.AddComponentBoxed(e, value.Interface()); err != nil {
			w.Despawn(e)
			return NilEntity, err
		}
	}
	return e, nil
}

// getByName resolves a registered component by its type name. Snapshot
// decoding is the only caller; registration order makes the scan stable.
func (r *ComponentRegistry) getByName(name string) *ComponentInfo {
	for _, info := range r.all {
		if info.Type.String() == name {
			return info
		}
	}
	return nil
}
