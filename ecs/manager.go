package ecs

import (
	"iter"
	"reflect"
	"sort"
	"sync"

	"github.com/kamstrup/intmap"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// EntityLocation is an entity's physical address: its archetype and dense
// slot within it. Slots move when other entities are swap-removed, so a
// location is only valid until the next structural change.
type EntityLocation struct {
	Archetype *Archetype
	Slot      int
}

// ManagerOption configures an ArchetypeManager.
type ManagerOption func(*ArchetypeManager)

// WithManagerLogger attaches a logger; structural changes log at debug level.
func WithManagerLogger(logger zerolog.Logger) ManagerOption {
	return func(m *ArchetypeManager) {
		m.logger = logger
	}
}

// WithManagerChunkCapacity overrides the per-chunk entity capacity.
func WithManagerChunkCapacity(capacity int) ManagerOption {
	return func(m *ArchetypeManager) {
		if capacity > 0 {
			m.chunkCapacity = capacity
		}
	}
}

// ArchetypeManager owns every archetype, the entity index, and the query
// cache. Structural operations (spawn, add/remove component, remove entity)
// take the write lock; probes take the read lock.
//
// Failure model: write operations on malformed input return errors; probes
// and removals of untracked or stale entities fail soft (false/nil/empty).
type ArchetypeManager struct {
	mu            sync.RWMutex
	registry      *ComponentRegistry
	pool          *chunkPool
	archetypes    map[componentMask]*Archetype
	index         *intmap.Map[uint32, EntityLocation]
	entityCount   int
	queries       *QueryManager
	logger        zerolog.Logger
	chunkCapacity int
	nextID        uint32
	closed        bool
}

// NewArchetypeManager creates an empty manager bound to the given registry.
// The manager owns its QueryManager; archetype creation feeds the query
// cache incrementally.
func NewArchetypeManager(registry *ComponentRegistry, opts ...ManagerOption) *ArchetypeManager {
	m := &ArchetypeManager{
		registry:      registry,
		archetypes:    make(map[componentMask]*Archetype),
		index:         intmap.New[uint32, EntityLocation](256),
		logger:        zerolog.Nop(),
		chunkCapacity: defaultChunkCapacity,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.pool = newChunkPool(m.chunkCapacity)
	m.queries = newQueryManager()
	return m
}

// Registry returns the component registry the manager resolves types with.
func (m *ArchetypeManager) Registry() *ComponentRegistry { return m.registry }

// Queries returns the manager's query cache.
func (m *ArchetypeManager) Queries() *QueryManager { return m.queries }

// ArchetypeCount reports how many distinct archetypes exist.
func (m *ArchetypeManager) ArchetypeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.archetypes)
}

// EntityCount reports how many entities the manager tracks.
func (m *ArchetypeManager) EntityCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entityCount
}

// resolveInfos maps component types to registered infos, deduplicated and
// sorted by ComponentID.
func (m *ArchetypeManager) resolveInfos(types []reflect.Type) ([]*ComponentInfo, error) {
	infos := make([]*ComponentInfo, 0, len(types))
	var mask componentMask
	for _, t := range types {
		info := m.registry.Get(t)
		if info == nil {
			return nil, eris.Wrapf(ErrComponentNotRegistered, "component type %s", t)
		}
		if mask.has(info.ID) {
			continue
		}
		mask = mask.with(info.ID)
		infos = append(infos, info)
	}
	sortInfos(infos)
	return infos, nil
}

func sortInfos(infos []*ComponentInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
}

// getOrCreateLocked returns the archetype for the exact info set, creating
// and publishing it to the query cache on first use. Caller holds the write
// lock; infos must be sorted by ID.
func (m *ArchetypeManager) getOrCreateLocked(infos []*ComponentInfo) *Archetype {
	mask := componentMask{}
	for _, info := range infos {
		mask = mask.with(info.ID)
	}
	if arch, ok := m.archetypes[mask]; ok {
		return arch
	}
	arch := newArchetype(m.nextID, infos, m.pool)
	m.nextID++
	m.archetypes[mask] = arch
	m.queries.onArchetypeCreated(arch)
	m.logger.Debug().
		Uint32("archetype_id", arch.id).
		Int("component_count", len(infos)).
		Msg("archetype created")
	return arch
}

// GetOrCreateArchetype returns the archetype for the unordered type set,
// creating it on first use. All types must be registered.
func (m *ArchetypeManager) GetOrCreateArchetype(types ...reflect.Type) (*Archetype, error) {
	infos, err := m.resolveInfos(types)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, eris.Wrap(ErrManagerClosed, "GetOrCreateArchetype")
	}
	return m.getOrCreateLocked(infos), nil
}

// PreallocateArchetype registers the archetype for the type set upfront so
// that entities spawned later with exactly that shape cause no archetype
// creation. Idempotent.
func (m *ArchetypeManager) PreallocateArchetype(types ...reflect.Type) (*Archetype, error) {
	return m.GetOrCreateArchetype(types...)
}

// AddEntity inserts a new entity with the given initial component values.
// The target archetype is derived from the value types. Returns an error if
// the handle is already tracked or a component type is unregistered.
func (m *ArchetypeManager) AddEntity(e Entity, components ...any) error {
	types := make([]reflect.Type, len(components))
	for i, c := range components {
		types[i] = componentType(c)
	}
	infos, err := m.resolveInfos(types)
	if err != nil {
		return err
	}
	if len(infos) != len(components) {
		return eris.Wrapf(ErrComponentAlreadyPresent, "entity %d given duplicate initial components", e.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return eris.Wrap(ErrManagerClosed, "AddEntity")
	}
	if _, ok := m.index.Get(e.ID); ok {
		return eris.Wrapf(ErrEntityAlreadyTracked, "entity %d is already tracked", e.ID)
	}

	arch := m.getOrCreateLocked(infos)
	slot := arch.addEntity(e)
	for _, c := range components {
		info := m.registry.Get(componentType(c))
		arch.setBoxed(slot, info.ID, c)
	}
	m.index.Put(e.ID, EntityLocation{Archetype: arch, Slot: slot})
	m.entityCount++
	return nil
}

// locationLocked resolves a handle to its location, rejecting stale versions.
func (m *ArchetypeManager) locationLocked(e Entity) (EntityLocation, bool) {
	loc, ok := m.index.Get(e.ID)
	if !ok {
		return EntityLocation{}, false
	}
	if loc.Archetype.EntityAt(loc.Slot) != e {
		return EntityLocation{}, false
	}
	return loc, true
}

// removeFromArchetypeLocked swap-removes the entity at loc and fixes the
// moved entity's index entry in the same critical section.
func (m *ArchetypeManager) removeFromArchetypeLocked(loc EntityLocation) {
	moved, swapped := loc.Archetype.removeEntity(loc.Slot)
	if swapped {
		m.index.Put(moved.ID, EntityLocation{Archetype: loc.Archetype, Slot: loc.Slot})
	}
}

// migrateLocked moves the entity from loc into dst, copying every component
// value both archetypes store, and returns the new location.
func (m *ArchetypeManager) migrateLocked(e Entity, loc EntityLocation, dst *Archetype) EntityLocation {
	dstSlot := dst.addEntity(e)
	loc.Archetype.copyCommonTo(loc.Slot, dst, dstSlot)
	m.removeFromArchetypeLocked(loc)
	newLoc := EntityLocation{Archetype: dst, Slot: dstSlot}
	m.index.Put(e.ID, newLoc)
	return newLoc
}

// unionInfosLocked returns arch's infos plus extra, sorted by ID.
func unionInfos(arch *Archetype, extra *ComponentInfo) []*ComponentInfo {
	infos := make([]*ComponentInfo, 0, len(arch.infos)+1)
	infos = append(infos, arch.infos...)
	infos = append(infos, extra)
	sortInfos(infos)
	return infos
}

// addComponentLocked migrates the entity to the union archetype and returns
// its new location so typed callers can write the value directly.
func (m *ArchetypeManager) addComponent(e Entity, info *ComponentInfo) (EntityLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return EntityLocation{}, eris.Wrap(ErrManagerClosed, "AddComponent")
	}
	loc, ok := m.locationLocked(e)
	if !ok {
		return EntityLocation{}, eris.Wrapf(ErrEntityNotTracked, "entity %d is not tracked", e.ID)
	}
	if loc.Archetype.Has(info.ID) {
		return EntityLocation{}, eris.Wrapf(ErrComponentAlreadyPresent,
			"entity %d already has component %s", e.ID, info.Type)
	}
	dst := m.getOrCreateLocked(unionInfos(loc.Archetype, info))
	return m.migrateLocked(e, loc, dst), nil
}

// AddComponent adds a typed component value to a tracked entity, migrating it
// to the archetype with the union type set. Returns an error if the entity is
// untracked or already has the component.
func AddComponent[T any](m *ArchetypeManager, e Entity, component T) error {
	info := m.registry.Get(reflect.TypeFor[T]())
	if info == nil {
		return eris.Wrapf(ErrComponentNotRegistered, "component type %s", reflect.TypeFor[T]())
	}
	loc, err := m.addComponent(e, info)
	if err != nil {
		return err
	}
	if !info.IsTag {
		*(*T)(loc.Archetype.componentPtr(loc.Slot, info.ID)) = component
	}
	return nil
}

// AddComponentBoxed adds a type-erased component value; the component type is
// taken from the value (pointers are dereferenced). Intended for the
// restore/introspection boundary, not the hot path.
func (m *ArchetypeManager) AddComponentBoxed(e Entity, component any) error {
	info := m.registry.Get(componentType(component))
	if info == nil {
		return eris.Wrapf(ErrComponentNotRegistered, "component type %v", componentType(component))
	}
	loc, err := m.addComponent(e, info)
	if err != nil {
		return err
	}
	loc.Archetype.setBoxed(loc.Slot, info.ID, component)
	return nil
}

// RemoveComponent migrates the entity to the archetype without the given
// component type. Returns false, without error, when the entity is untracked
// or does not have the component. Removing the last component leaves the
// entity tracked in the empty archetype.
func (m *ArchetypeManager) RemoveComponent(e Entity, t reflect.Type) bool {
	info := m.registry.Get(t)
	if info == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	loc, ok := m.locationLocked(e)
	if !ok || !loc.Archetype.Has(info.ID) {
		return false
	}
	infos := make([]*ComponentInfo, 0, len(loc.Archetype.infos)-1)
	for _, ci := range loc.Archetype.infos {
		if ci.ID != info.ID {
			infos = append(infos, ci)
		}
	}
	dst := m.getOrCreateLocked(infos)
	m.migrateLocked(e, loc, dst)
	return true
}

// Get returns a pointer directly into chunk storage for in-place mutation.
// The pointer is valid until the entity's next structural change. Errors for
// untracked entities, missing components and tags.
func Get[T any](m *ArchetypeManager, e Entity) (*T, error) {
	t := reflect.TypeFor[T]()
	info := m.registry.Get(t)
	if info == nil {
		return nil, eris.Wrapf(ErrComponentNotRegistered, "component type %s", t)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locationLocked(e)
	if !ok {
		return nil, eris.Wrapf(ErrEntityNotTracked, "entity %d is not tracked", e.ID)
	}
	if !loc.Archetype.Has(info.ID) {
		return nil, eris.Wrapf(ErrComponentMissing, "entity %d does not have component %s", e.ID, t)
	}
	if info.IsTag {
		return nil, eris.Wrapf(ErrTagHasNoStorage, "component type %s", t)
	}
	return (*T)(loc.Archetype.componentPtr(loc.Slot, info.ID)), nil
}

// Set overwrites an existing component value in place. The component must
// already be part of the entity's archetype.
func Set[T any](m *ArchetypeManager, e Entity, component T) error {
	ptr, err := Get[T](m, e)
	if err != nil {
		return err
	}
	*ptr = component
	return nil
}

// SetBoxed overwrites an existing component value from a type-erased one.
func (m *ArchetypeManager) SetBoxed(e Entity, component any) error {
	t := componentType(component)
	info := m.registry.Get(t)
	if info == nil {
		return eris.Wrapf(ErrComponentNotRegistered, "component type %v", t)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locationLocked(e)
	if !ok {
		return eris.Wrapf(ErrEntityNotTracked, "entity %d is not tracked", e.ID)
	}
	if !loc.Archetype.Has(info.ID) {
		return eris.Wrapf(ErrComponentMissing, "entity %d does not have component %s", e.ID, t)
	}
	if info.IsTag {
		return eris.Wrapf(ErrTagHasNoStorage, "component type %s", t)
	}
	loc.Archetype.setBoxed(loc.Slot, info.ID, component)
	return nil
}

// Has reports whether the entity currently has component T. False for
// untracked or stale handles.
func Has[T any](m *ArchetypeManager, e Entity) bool {
	return m.HasType(e, reflect.TypeFor[T]())
}

// HasType reports whether the entity currently has the component type. False
// for untracked or stale handles; never errors.
func (m *ArchetypeManager) HasType(e Entity, t reflect.Type) bool {
	info := m.registry.Get(t)
	if info == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locationLocked(e)
	return ok && loc.Archetype.Has(info.ID)
}

// RemoveEntity removes the entity from its archetype (swap-with-last) and
// deletes its index entry. Returns false for untracked or stale handles.
func (m *ArchetypeManager) RemoveEntity(e Entity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.locationLocked(e)
	if !ok {
		return false
	}
	m.removeFromArchetypeLocked(loc)
	m.index.Del(e.ID)
	m.entityCount--
	return true
}

// GetComponentTypes returns the entity's current component types in
// ComponentID order, or nil for untracked entities. The result is a copy.
func (m *ArchetypeManager) GetComponentTypes(e Entity) []reflect.Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locationLocked(e)
	if !ok {
		return nil
	}
	types := make([]reflect.Type, len(loc.Archetype.types))
	copy(types, loc.Archetype.types)
	return types
}

// GetComponents returns a lazy sequence of (type, boxed value) pairs for the
// entity's current components; tags yield their zero value. The sequence is
// empty for untracked or stale handles, re-resolves the entity on every
// iteration, and holds no lock while yielding.
func (m *ArchetypeManager) GetComponents(e Entity) iter.Seq2[reflect.Type, any] {
	return func(yield func(reflect.Type, any) bool) {
		m.mu.RLock()
		loc, ok := m.locationLocked(e)
		if !ok {
			m.mu.RUnlock()
			return
		}
		infos := loc.Archetype.componentInfos()
		values := make([]any, len(infos))
		for i, info := range infos {
			if info.IsTag {
				values[i] = reflect.New(info.Type).Elem().Interface()
			} else {
				values[i] = loc.Archetype.boxed(loc.Slot, info.ID)
			}
		}
		m.mu.RUnlock()

		for i, info := range infos {
			if !yield(info.Type, values[i]) {
				return
			}
		}
	}
}

// TryGetEntityLocation is the soft probe for an entity's location.
func (m *ArchetypeManager) TryGetEntityLocation(e Entity) (EntityLocation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locationLocked(e)
}

// GetEntityLocation resolves an entity's location, erroring when untracked.
func (m *ArchetypeManager) GetEntityLocation(e Entity) (EntityLocation, error) {
	loc, ok := m.TryGetEntityLocation(e)
	if !ok {
		return EntityLocation{}, eris.Wrapf(ErrEntityNotTracked, "entity %d is not tracked", e.ID)
	}
	return loc, nil
}

// Clear removes every archetype and entity, returning chunk storage to the
// pool and dropping the query cache's entries. The manager stays fully usable
// and the pool serves recreated shapes without fresh allocation. Calling
// Clear on an empty manager is a no-op.
func (m *ArchetypeManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, arch := range m.archetypes {
		arch.clear()
	}
	m.archetypes = make(map[componentMask]*Archetype)
	m.index.Clear()
	m.entityCount = 0
	m.queries.reset()
	m.logger.Debug().Msg("archetype manager cleared")
}

// Close clears the manager and discards pooled chunks. Further structural
// operations fail; Clear immediately before Close is safe.
func (m *ArchetypeManager) Close() {
	m.Clear()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.pool.drain()
}
