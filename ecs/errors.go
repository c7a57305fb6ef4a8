package ecs

import "github.com/rotisserie/eris"

var (
	// ErrEntityNotTracked indicates an operation that requires a tracked entity
	// was given a handle the manager has never seen or has already removed.
	ErrEntityNotTracked = eris.New("ecs: entity not tracked")
	// ErrEntityAlreadyTracked indicates AddEntity was called twice for one handle.
	ErrEntityAlreadyTracked = eris.New("ecs: entity already tracked")
	// ErrComponentAlreadyPresent indicates a duplicate AddComponent call.
	ErrComponentAlreadyPresent = eris.New("ecs: entity already has component")
	// ErrComponentMissing indicates a Get/Set on a component the entity's
	// archetype does not contain.
	ErrComponentMissing = eris.New("ecs: entity does not have component")
	// ErrComponentNotRegistered signals use of a component type that was never
	// registered with the world's registry.
	ErrComponentNotRegistered = eris.New("ecs: component not registered")
	// ErrTagHasNoStorage is returned when component data is requested for a
	// zero-size tag component.
	ErrTagHasNoStorage = eris.New("ecs: tag component has no storage")
	// ErrTooManyComponents is returned when registration would exceed the
	// component mask width.
	ErrTooManyComponents = eris.New("ecs: too many component types registered")
	// ErrManagerClosed indicates use of an archetype manager after Close.
	ErrManagerClosed = eris.New("ecs: archetype manager closed")
)
