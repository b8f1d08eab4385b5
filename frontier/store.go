package frontier

import "context"

// OrderedURLStore is the durable, key-ordered backing store for URL
// records plus their companion seed offspring counts (Section 4.1). All
// range operations walk keys in ascending byte order, which for Key values
// reproduces (priority, depth, docid) ordering exactly.
type OrderedURLStore interface {
	// Put inserts rec under key. inserted is false, with no error, if key
	// already existed (Put is a no-op on a duplicate key, never an error).
	Put(ctx context.Context, key Key, rec URLRecord) (inserted bool, err error)
	Delete(ctx context.Context, key Key) error
	Get(ctx context.Context, key Key) (rec URLRecord, found bool, err error)

	// First and Next walk the store in ascending key order; Next returns
	// the first record whose key sorts strictly after "after".
	First(ctx context.Context) (key Key, rec URLRecord, found bool, err error)
	Next(ctx context.Context, after Key) (key Key, rec URLRecord, found bool, err error)

	// RangeDelete deletes and returns every record matching match.
	RangeDelete(ctx context.Context, match func(URLRecord) bool) ([]URLRecord, error)

	Count(ctx context.Context) (int, error)
	// All returns every record in ascending key order, for startup rebuild.
	All(ctx context.Context) ([]URLRecord, error)

	PutSeedCount(ctx context.Context, seed uint64, count int) error
	DeleteSeedCount(ctx context.Context, seed uint64) error
	AllSeedCounts(ctx context.Context) (map[uint64]int, error)

	// Transaction runs fn against a store handle whose writes commit (or
	// roll back) atomically together when the store is resumable; when the
	// store is not resumable, fn simply runs against the store directly
	// (writes are autocommitted as they happen, per Section 5/9).
	Transaction(ctx context.Context, fn func(tx OrderedURLStore) error) error

	Close() error
}
