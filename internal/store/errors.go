package store

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// ErrDeleted is returned when a write targets a soft-deleted row that the
// operation does not permit resurrecting.
var ErrDeleted = errors.New("deleted")
