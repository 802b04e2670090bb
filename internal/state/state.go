// Package state derives bomb-related world state from the target process's
// entity graph. Every derivation is a pure function of its Deps: it takes one
// game clock reading, scans the entity directory and returns a fresh snapshot.
//
// Absence (no bomb planted, nobody carrying it, unreadable name) is reported
// inside the snapshot. Errors are reserved for collaborator failures and for
// references that must resolve once a governing flag has been observed; those
// are returned as *ResolutionError.
package state

import (
	"errors"
	"fmt"

	"github.com/bombwatch/extension/internal/entity"
	"github.com/bombwatch/extension/internal/memory"
	"github.com/bombwatch/extension/internal/schema"
)

// ClassResolver maps a class-info pointer to its runtime class name.
type ClassResolver interface {
	Lookup(classInfo uint64) (name string, ok bool, err error)
}

// Deps are the collaborators a derivation reads from.
type Deps struct {
	Memory   memory.Reader
	Entities entity.Directory
	Classes  ClassResolver
	Clock    Clock
	Layout   schema.Layout
}

// ErrUnresolved matches every *ResolutionError.
var ErrUnresolved = errors.New("unresolved reference")

// ResolutionError reports a mandatory hop that resolved to nothing.
type ResolutionError struct {
	Hop    string
	Entity uint32
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s from entity %d: %v", e.Hop, e.Entity, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrUnresolved
}

// entityErr tags a field read failure with the entity it was read from.
func entityErr(index uint32, err error) error {
	return fmt.Errorf("entity %d: %w", index, err)
}

func unresolved(hop string, from uint32) error {
	return &ResolutionError{Hop: hop, Entity: from, Err: ErrUnresolved}
}

// isClass reports whether id's runtime class is name.
func (d Deps) isClass(id entity.Identity, name string) (bool, error) {
	class, ok, err := d.Classes.Lookup(id.ClassInfo)
	if err != nil {
		return false, fmt.Errorf("class name of entity %d: %w", id.Index, err)
	}
	return ok && class == name, nil
}

// resolve follows h to a live identity with a non-null object pointer.
func (d Deps) resolve(h entity.Handle, hop string, from uint32) (entity.Identity, error) {
	id, ok := d.Entities.Resolve(h)
	if !ok {
		return entity.Identity{}, unresolved(hop, from)
	}
	if id.Address == 0 {
		return entity.Identity{}, &ResolutionError{Hop: hop, Entity: from, Err: memory.ErrNullPointer}
	}
	return id, nil
}
