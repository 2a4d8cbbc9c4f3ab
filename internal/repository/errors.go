package repository

import "errors"

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an insert loses a slot race
	ErrConflict = errors.New("conflicting record exists")
	// ErrStale is returned when a guarded update matched no rows
	ErrStale = errors.New("record changed concurrently")
)
