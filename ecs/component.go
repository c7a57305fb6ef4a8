package ecs

import (
	"reflect"

	"github.com/rotisserie/eris"
)

// ComponentID identifies a registered component type within one registry.
// IDs are assigned sequentially from 0 in registration order; registries of
// different worlds are fully independent, so the same Go type may carry
// different IDs in different worlds.
type ComponentID int16

// InvalidComponentID is the sentinel for "no component".
const InvalidComponentID ComponentID = -1

// maxComponentTypes matches the component mask width.
const maxComponentTypes = maskWords * bitsPerWord

// ComponentInfo describes one registered component type. Instances are
// created once per type per registry and never mutated afterwards.
type ComponentInfo struct {
	ID    ComponentID
	Type  reflect.Type
	Size  uintptr // 0 for tags
	IsTag bool
}

// Name returns the component's type name, for logs and snapshots.
func (ci *ComponentInfo) Name() string {
	return ci.Type.String()
}

// ComponentRegistry assigns stable IDs and metadata to component types.
// Each World owns its own registry.
type ComponentRegistry struct {
	byType map[reflect.Type]*ComponentInfo
	all    []*ComponentInfo
}

// NewComponentRegistry creates an empty component registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		byType: make(map[reflect.Type]*ComponentInfo),
	}
}

// RegisterComponent registers T as a data-carrying component and returns its
// info. Registration is idempotent: re-registering returns the existing info.
func RegisterComponent[T any](r *ComponentRegistry) *ComponentInfo {
	return r.register(reflect.TypeFor[T](), false)
}

// RegisterTag registers T as a zero-size tag component. Tags participate in
// archetype membership and queries but have no column storage.
func RegisterTag[T any](r *ComponentRegistry) *ComponentInfo {
	return r.register(reflect.TypeFor[T](), true)
}

// GetComponent returns the info for T, or nil if T is unregistered.
func GetComponent[T any](r *ComponentRegistry) *ComponentInfo {
	return r.byType[reflect.TypeFor[T]()]
}

// IsRegistered reports whether T has been registered.
func IsRegistered[T any](r *ComponentRegistry) bool {
	return r.byType[reflect.TypeFor[T]()] != nil
}

func (r *ComponentRegistry) register(t reflect.Type, isTag bool) *ComponentInfo {
	if info, ok := r.byType[t]; ok {
		return info
	}
	if len(r.all) >= maxComponentTypes {
		panic(eris.Wrapf(ErrTooManyComponents, "cannot register %s (limit %d)", t, maxComponentTypes))
	}
	size := t.Size()
	if isTag {
		size = 0
	}
	info := &ComponentInfo{
		ID:    ComponentID(len(r.all)),
		Type:  t,
		Size:  size,
		IsTag: isTag,
	}
	r.byType[t] = info
	r.all = append(r.all, info)
	return info
}

// Get returns the info for t, or nil if unregistered.
func (r *ComponentRegistry) Get(t reflect.Type) *ComponentInfo {
	return r.byType[t]
}

// GetByID returns the info with the given ID, or nil if out of range.
func (r *ComponentRegistry) GetByID(id ComponentID) *ComponentInfo {
	if id < 0 || int(id) >= len(r.all) {
		return nil
	}
	return r.all[id]
}

// GetOrRegister returns the existing info for t, registering it first when
// needed.
func (r *ComponentRegistry) GetOrRegister(t reflect.Type, isTag bool) *ComponentInfo {
	return r.register(t, isTag)
}

// All returns the registered infos in registration order. The returned slice
// is shared; callers must not modify it.
func (r *ComponentRegistry) All() []*ComponentInfo {
	return r.all
}

// Len reports the number of registered component types.
func (r *ComponentRegistry) Len() int {
	return len(r.all)
}

// componentType normalizes a component value's type: pointers to components
// are treated as the component type itself.
func componentType(component any) reflect.Type {
	t := reflect.TypeOf(component)
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
