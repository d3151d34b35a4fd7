package store

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEntryKey indicates an entry identifier already exists in
	// the staging or entry tables.
	ErrDuplicateEntryKey = errors.New("duplicate entry identifier")
)
