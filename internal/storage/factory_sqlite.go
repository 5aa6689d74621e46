//go:build sqlite

package storage

import "errors"

func DefaultStoreKind() string {
	return KindSQLite
}

func newSQLiteStore(path string) (Store, error) {
	if path == "" {
		return nil, errors.New("sqlite store needs a database path")
	}
	return NewSQLiteStore(path), nil
}
