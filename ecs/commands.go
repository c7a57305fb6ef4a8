package ecs

import "reflect"

// Commands buffers structural operations so systems can request spawns,
// despawns and component changes mid-frame without mutating storage while it
// is being iterated. The buffer is flushed against the world at frame end.
type Commands struct {
	spawns   []spawnCommand
	despawns []Entity
	adds     []addComponentCommand
	removes  []removeComponentCommand
	defers   []func()
}

// NewCommands creates an empty command buffer. Schedulers create one per
// frame; standalone use outside a scheduler works the same way.
func NewCommands() *Commands {
	return &Commands{}
}

type spawnCommand struct {
	components []any
}

type addComponentCommand struct {
	entity    Entity
	component any
}

type removeComponentCommand struct {
	entity        Entity
	componentType reflect.Type
}

// Defer queues an arbitrary function to run after all structural commands.
func (c *Commands) Defer(fn func()) {
	if fn != nil {
		c.defers = append(c.defers, fn)
	}
}

// Spawn queues an entity spawn with the given component values.
func (c *Commands) Spawn(components ...any) {
	c.spawns = append(c.spawns, spawnCommand{components: components})
}

// Despawn queues an entity despawn.
func (c *Commands) Despawn(e Entity) {
	c.despawns = append(c.despawns, e)
}

// AddComponent queues a component addition.
func (c *Commands) AddComponent(e Entity, component any) {
	c.adds = append(c.adds, addComponentCommand{entity: e, component: component})
}

// RemoveComponent queues a component removal.
func (c *Commands) RemoveComponent(e Entity, componentType reflect.Type) {
	c.removes = append(c.removes, removeComponentCommand{entity: e, componentType: componentType})
}

// Len reports how many operations are queued.
func (c *Commands) Len() int {
	return len(c.spawns) + len(c.despawns) + len(c.adds) + len(c.removes) + len(c.defers)
}

// Flush applies all queued commands to the world and resets the buffer.
// Despawns apply first; adds and removes targeting an entity despawned in
// the same flush are dropped. Failures of individual commands are logged and
// do not stop the flush.
func (c *Commands) Flush(w *World) {
	despawned := make(map[Entity]bool, len(c.despawns))

	for _, e := range c.despawns {
		w.Despawn(e)
		despawned[e] = true
	}

	for _, cmd := range c.removes {
		if !despawned[cmd.entity] {
			w.Archetypes().RemoveComponent(cmd.entity, cmd.componentType)
		}
	}

	for _, cmd := range c.adds {
		if despawned[cmd.entity] {
			continue
		}
		if err := w.Archetypes().AddComponentBoxed(cmd.entity, cmd.component); err != nil {
			w.logger.Warn().Err(err).Uint32("entity_id", cmd.entity.ID).Msg("deferred add component failed")
		}
	}

	for _, cmd := range c.spawns {
		if _, err := w.Spawn(cmd.components...); err != nil {
			w.logger.Warn().Err(err).Msg("deferred spawn failed")
		}
	}

	for _, fn := range c.defers {
		fn()
	}

	c.spawns = c.spawns[:0]
	c.despawns = c.despawns[:0]
	c.adds = c.adds[:0]
	c.removes = c.removes[:0]
	c.defers = c.defers[:0]
}
