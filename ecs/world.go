package ecs

import (
	"reflect"
	"sync"

	"github.com/rs/zerolog"
)

// WorldOption configures a World at construction time.
type WorldOption func(*worldConfig)

type worldConfig struct {
	logger         zerolog.Logger
	chunkCapacity  int
	entityCapacity int
}

// WithLogger sets the world's logger; it is passed down to the archetype
// manager. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) WorldOption {
	return func(c *worldConfig) { c.logger = logger }
}

// WithChunkCapacity sets the entity capacity of each storage chunk.
func WithChunkCapacity(capacity int) WorldOption {
	return func(c *worldConfig) {
		if capacity > 0 {
			c.chunkCapacity = capacity
		}
	}
}

// WithEntityCapacity pre-sizes the entity allocator.
func WithEntityCapacity(capacity int) WorldOption {
	return func(c *worldConfig) {
		if capacity > 0 {
			c.entityCapacity = capacity
		}
	}
}

// World ties together the component registry, the entity lifetime authority,
// the archetype storage and the query cache. Worlds are fully isolated: the
// same component type registered in two worlds gets independent IDs.
type World struct {
	registry   *ComponentRegistry
	archetypes *ArchetypeManager
	logger     zerolog.Logger

	mu           sync.Mutex
	allocator    *entityAllocator
	extensions   map[reflect.Type]any
	despawnHooks []func(Entity)
}

// NewWorld constructs an empty world.
func NewWorld(opts ...WorldOption) *World {
	cfg := worldConfig{
		logger:         zerolog.Nop(),
		chunkCapacity:  defaultChunkCapacity,
		entityCapacity: 256,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	registry := NewComponentRegistry()
	return &World{
		registry: registry,
		archetypes: NewArchetypeManager(registry,
			WithManagerLogger(cfg.logger),
			WithManagerChunkCapacity(cfg.chunkCapacity)),
		logger:     cfg.logger,
		allocator:  newEntityAllocator(cfg.entityCapacity),
		extensions: make(map[reflect.Type]any),
	}
}

// Registry returns the world's component registry.
func (w *World) Registry() *ComponentRegistry { return w.registry }

// Archetypes returns the world's archetype manager.
func (w *World) Archetypes() *ArchetypeManager { return w.archetypes }

// Queries returns the world's query cache.
func (w *World) Queries() *QueryManager { return w.archetypes.Queries() }

// Logger returns the world's logger.
func (w *World) Logger() zerolog.Logger { return w.logger }

// Spawn creates a live entity with the given initial component values. All
// component types must already be registered.
func (w *World) Spawn(components ...any) (Entity, error) {
	w.mu.Lock()
	e := w.allocator.Alloc()
	w.mu.Unlock()

	if err := w.archetypes.AddEntity(e, components...); err != nil {
		w.mu.Lock()
		w.allocator.Free(e)
		w.mu.Unlock()
		return NilEntity, err
	}
	w.logger.Trace().Uint32("entity_id", e.ID).Int("components", len(components)).Msg("entity spawned")
	return e, nil
}

// Despawn kills the entity: its storage is removed, its ID recycled with a
// bumped version, and despawn hooks run so side tables can purge it. Returns
// false for dead or stale handles.
func (w *World) Despawn(e Entity) bool {
	w.mu.Lock()
	if !w.allocator.Free(e) {
		w.mu.Unlock()
		return false
	}
	hooks := w.despawnHooks
	w.mu.Unlock()

	w.archetypes.RemoveEntity(e)
	// Hooks run outside any lock.
	for _, hook := range hooks {
		hook(e)
	}
	w.logger.Trace().Uint32("entity_id", e.ID).Msg("entity despawned")
	return true
}

// IsAlive reports whether the handle refers to a live entity.
func (w *World) IsAlive(e Entity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.allocator.IsAlive(e)
}

// EntityCount reports the number of live entities.
func (w *World) EntityCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.allocator.Count()
}

// OnDespawn registers a hook invoked after each despawn. Layered subsystems
// (hierarchy, tags, scenes) use this to drop their side-table entries.
func (w *World) OnDespawn(hook func(Entity)) {
	if hook == nil {
		return
	}
	w.mu.Lock()
	// Copy-on-write so Despawn can call hooks without holding the lock.
	hooks := make([]func(Entity), len(w.despawnHooks), len(w.despawnHooks)+1)
	copy(hooks, w.despawnHooks)
	w.despawnHooks = append(hooks, hook)
	w.mu.Unlock()
}

// Query returns the archetypes matching the descriptor, via the query cache.
func (w *World) Query(d QueryDescriptor) []*Archetype {
	return w.archetypes.Queries().GetMatchingArchetypes(d)
}

// Clear removes every entity and archetype; registered components, cached
// chunks and extensions survive, so the world is immediately reusable.
func (w *World) Clear() {
	w.archetypes.Clear()
	w.mu.Lock()
	w.allocator = newEntityAllocator(cap(w.allocator.versions))
	w.mu.Unlock()
}

// Close releases all storage. The world must not be used afterwards.
func (w *World) Close() {
	w.archetypes.Close()
}

// SetExtension stores a per-world typed extension value, keyed by its type.
// Plugins use this for state that is not entity data.
func SetExtension[T any](w *World, value T) {
	w.mu.Lock()
	w.extensions[reflect.TypeFor[T]()] = value
	w.mu.Unlock()
}

// GetExtension retrieves the extension value of type T, if one was set.
func GetExtension[T any](w *World) (T, bool) {
	w.mu.Lock()
	value, ok := w.extensions[reflect.TypeFor[T]()]
	w.mu.Unlock()
	if !ok {
		var zero T
		return zero, false
	}
	return value.(T), true
}

// RemoveExtension drops the extension value of type T. Returns whether one
// was present.
func RemoveExtension[T any](w *World) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := reflect.TypeFor[T]()
	_, ok := w.extensions[t]
	delete(w.extensions, t)
	return ok
}
