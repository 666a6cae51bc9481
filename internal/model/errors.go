package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup matches no row on the
	// queried database (including lookups against the wrong alias).
	ErrNotFound = errors.New("object not found")

	// ErrMultipleObjects is returned when Get matches more than one row.
	ErrMultipleObjects = errors.New("multiple objects returned")

	// ErrCrossDatabase is returned when a relation would tie together
	// objects living on different databases.
	ErrCrossDatabase = errors.New("cross-database assignment")
)

func notFound(m *Model) error {
	return fmt.Errorf("%s: %w", m.Name, ErrNotFound)
}

func multipleObjects(m *Model) error {
	return fmt.Errorf("%s: %w", m.Name, ErrMultipleObjects)
}

func crossDatabase(ownDB, otherDB string) error {
	return fmt.Errorf("%w: instance on %q, related object on %q", ErrCrossDatabase, ownDB, otherDB)
}
