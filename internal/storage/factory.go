package storage

import (
	"errors"
	"fmt"
	"strings"
)

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

var (
	ErrUnsupportedStore  = errors.New("unsupported store backend")
	ErrSQLiteUnavailable = errors.New("sqlite backend not compiled in")
)

// Kinds lists the backend names NewStore accepts.
func Kinds() []string {
	return []string{KindMemory, KindSQLite}
}

// NewStore opens the run store named kind. Names are case-insensitive; an
// empty name selects the memory store. sqlitePath is only read by the
// sqlite backend, which needs the sqlite build tag.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %q (want %s)", ErrUnsupportedStore, kind, strings.Join(Kinds(), "|"))
	}
}

// Close releases the resources of stores that hold any. Snapshots and
// tick history of a MemoryStore die with the process.
func Close(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
