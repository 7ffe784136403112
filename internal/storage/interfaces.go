package storage

import "context"

// DocumentStore is the keyed read/write contract the repositories build on.
// *DB implements it.
type DocumentStore interface {
	Load(ctx context.Context, key string, dst any) (bool, error)
	Save(ctx context.Context, key string, v any) error
}

var _ DocumentStore = (*DB)(nil)
