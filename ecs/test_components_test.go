package ecs_test

import (
	"reflect"

	"github.com/plus3/keeneyes/ecs"
)

// Common test component types
type Position struct {
	X, Y float32
}

type Velocity struct {
	DX, DY float32
}

type Name struct {
	Value string
}

type Health struct {
	Current int
	Max     int
}

type AI struct {
	State int
}

type Inventory struct {
	Items []string
}

// Tag components
type Player struct{}
type Frozen struct{}

func newTestWorld() *ecs.World {
	world := ecs.NewWorld()
	registerTestComponents(world.Registry())
	return world
}

func registerTestComponents(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Name](registry)
	ecs.RegisterComponent[Health](registry)
	ecs.RegisterComponent[AI](registry)
	ecs.RegisterComponent[Inventory](registry)
	ecs.RegisterTag[Player](registry)
	ecs.RegisterTag[Frozen](registry)
}

func typesOf(values ...any) []reflect.Type {
	types := make([]reflect.Type, len(values))
	for i, v := range values {
		types[i] = reflect.TypeOf(v)
	}
	return types
}
