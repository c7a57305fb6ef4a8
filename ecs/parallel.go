package ecs

import (
	"reflect"
	"runtime"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// ForEachEntity iterates sequentially over every entity matched by the
// descriptor. No lock is held while the callback runs; structural changes
// during iteration must go through Commands.
func ForEachEntity(w *World, d QueryDescriptor, fn func(e Entity)) {
	for _, arch := range w.Query(d) {
		for _, ch := range arch.chunks {
			for row := range ch.entities {
				fn(ch.entities[row])
			}
		}
	}
}

// ForEach iterates sequentially over every matched entity, handing the
// callback a pointer into chunk storage for component T. The descriptor must
// require T.
func ForEach[T any](w *World, d QueryDescriptor, fn func(e Entity, c *T)) error {
	info, err := parallelComponent[T](w, d)
	if err != nil {
		return err
	}
	for _, arch := range w.Query(d) {
		col := arch.columnOf[info.ID]
		for _, ch := range arch.chunks {
			for row := range ch.entities {
				fn(ch.entities[row], (*T)(ch.columns[col].ptr(row)))
			}
		}
	}
	return nil
}

// ForEachParallel partitions the matched archetypes' chunks across worker
// goroutines and invokes the callback once per entity with exclusive access
// to that entity's T: chunks are disjoint, so no two invocations ever share
// one entity's storage. There is no ordering guarantee across entities. The
// first callback error cancels the remaining work.
func ForEachParallel[T any](w *World, d QueryDescriptor, fn func(e Entity, c *T) error) error {
	info, err := parallelComponent[T](w, d)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, arch := range w.Query(d) {
		col := arch.columnOf[info.ID]
		for _, ch := range arch.chunks {
			g.Go(func() error {
				for row := range ch.entities {
					if err := fn(ch.entities[row], (*T)(ch.columns[col].ptr(row))); err != nil {
						return err
					}
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// parallelComponent validates that T is registered, carries storage, and is
// part of the descriptor's required set.
func parallelComponent[T any](w *World, d QueryDescriptor) (*ComponentInfo, error) {
	t := reflect.TypeFor[T]()
	info := w.registry.Get(t)
	if info == nil {
		return nil, eris.Wrapf(ErrComponentNotRegistered, "component type %s", t)
	}
	if info.IsTag {
		return nil, eris.Wrapf(ErrTagHasNoStorage, "component type %s", t)
	}
	if !d.with.has(info.ID) {
		return nil, eris.Wrapf(ErrComponentMissing, "query descriptor does not require component %s", t)
	}
	return info, nil
}
