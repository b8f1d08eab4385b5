package frontier

import (
	"context"
	"fmt"
)

// Validate checks the testable properties of Section 8 against the
// frontier's current in-memory and persisted state:
//
//  1. every seed's offspring counter equals its number of live URLs
//     (queued + claimed);
//  2. every per-host waiting list is strictly increasing by composite key;
//  3. the set of keys in the store equals the set of keys held across
//     every per-host queue plus the in-progress table (orphaned claims
//     excepted, since their store row was deliberately deleted early).
//
// It is intended for tests and operational smoke checks, not the hot
// path: it performs a full store scan.
func (f *Frontier) Validate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var violations []string

	liveBySeed := make(map[uint64]int)
	queueKeys := make(map[Key]struct{})

	for host, q := range f.registry.hosts {
		var prevKey Key
		havePrev := false
		for _, rec := range q.items {
			k := KeyForRecord(*rec)
			if _, dup := queueKeys[k]; dup {
				violations = append(violations, fmt.Sprintf("docid %d: key collides with another queued url", rec.Docid))
			}
			queueKeys[k] = struct{}{}
			liveBySeed[rec.SeedDocid]++
			if havePrev && !prevKey.Less(k) {
				violations = append(violations, fmt.Sprintf("host %s: queue not strictly increasing at docid %d", host, rec.Docid))
			}
			prevKey, havePrev = k, true
		}
		if q.claimed != nil {
			queueKeys[KeyForRecord(*q.claimed)] = struct{}{}
			liveBySeed[q.claimed.SeedDocid]++
		}
	}

	for seed, live := range liveBySeed {
		if f.offspring.get(seed) != live {
			violations = append(violations, fmt.Sprintf("seed %d: counter=%d live=%d", seed, f.offspring.get(seed), live))
		}
	}
	for seed, count := range f.offspring.counts {
		if _, ok := liveBySeed[seed]; !ok && count != 0 {
			violations = append(violations, fmt.Sprintf("seed %d: counter=%d but no live urls found", seed, count))
		}
	}

	for _, entry := range f.inProgress {
		queueKeys[KeyForRecord(entry.record)] = struct{}{}
	}

	storeRecs, err := f.store.All(ctx)
	if err != nil {
		// Non-mutating read: retried once before surfacing (Section 7).
		storeRecs, err = f.store.All(ctx)
	}
	if err != nil {
		return &StorageError{Op: "validate_scan", Err: err}
	}
	storeKeys := make(map[Key]struct{}, len(storeRecs))
	for _, rec := range storeRecs {
		storeKeys[KeyForRecord(rec)] = struct{}{}
	}

	orphanCount := len(f.orphaned)
	if len(storeKeys) != len(queueKeys)-orphanCount {
		violations = append(violations, fmt.Sprintf(
			"store holds %d keys, queues+in-progress hold %d (orphaned=%d)",
			len(storeKeys), len(queueKeys), orphanCount))
	}
	for k := range storeKeys {
		if _, ok := queueKeys[k]; !ok {
			violations = append(violations, fmt.Sprintf("key %x present in store but not in any queue or in-progress entry", k[:]))
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
