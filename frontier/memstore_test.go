package frontier

import (
	"context"
	"sort"
)

// memStore is a minimal in-memory OrderedURLStore used by the tests in
// this package, so frontier behavior can be exercised without opening a
// real SQLite file per test case.
type memStore struct {
	rows       map[Key]URLRecord
	seedCounts map[uint64]int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[Key]URLRecord), seedCounts: make(map[uint64]int)}
}

func (s *memStore) sortedKeys() []Key {
	keys := make([]Key, 0, len(s.rows))
	for k := range s.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func (s *memStore) Put(ctx context.Context, key Key, rec URLRecord) (bool, error) {
	if _, exists := s.rows[key]; exists {
		return false, nil
	}
	s.rows[key] = rec
	return true, nil
}

func (s *memStore) Delete(ctx context.Context, key Key) error {
	delete(s.rows, key)
	return nil
}

func (s *memStore) Get(ctx context.Context, key Key) (URLRecord, bool, error) {
	rec, ok := s.rows[key]
	return rec, ok, nil
}

func (s *memStore) First(ctx context.Context) (Key, URLRecord, bool, error) {
	keys := s.sortedKeys()
	if len(keys) == 0 {
		return Key{}, URLRecord{}, false, nil
	}
	return keys[0], s.rows[keys[0]], true, nil
}

func (s *memStore) Next(ctx context.Context, after Key) (Key, URLRecord, bool, error) {
	for _, k := range s.sortedKeys() {
		if after.Less(k) {
			return k, s.rows[k], true, nil
		}
	}
	return Key{}, URLRecord{}, false, nil
}

func (s *memStore) RangeDelete(ctx context.Context, match func(URLRecord) bool) ([]URLRecord, error) {
	var removed []URLRecord
	for _, k := range s.sortedKeys() {
		rec := s.rows[k]
		if match(rec) {
			removed = append(removed, rec)
			delete(s.rows, k)
		}
	}
	return removed, nil
}

func (s *memStore) Count(ctx context.Context) (int, error) { return len(s.rows), nil }

func (s *memStore) All(ctx context.Context) ([]URLRecord, error) {
	keys := s.sortedKeys()
	recs := make([]URLRecord, len(keys))
	for i, k := range keys {
		recs[i] = s.rows[k]
	}
	return recs, nil
}

func (s *memStore) PutSeedCount(ctx context.Context, seed uint64, count int) error {
	s.seedCounts[seed] = count
	return nil
}

func (s *memStore) DeleteSeedCount(ctx context.Context, seed uint64) error {
	delete(s.seedCounts, seed)
	return nil
}

func (s *memStore) AllSeedCounts(ctx context.Context) (map[uint64]int, error) {
	m := make(map[uint64]int, len(s.seedCounts))
	for k, v := range s.seedCounts {
		m[k] = v
	}
	return m, nil
}

func (s *memStore) Transaction(ctx context.Context, fn func(tx OrderedURLStore) error) error {
	return fn(s)
}

func (s *memStore) Close() error { return nil }
