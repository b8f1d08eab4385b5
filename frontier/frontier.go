package frontier

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Observer receives best-effort notifications of frontier activity. It is
// the seam the ambient layer uses to feed metrics and Kafka events without
// the core knowing either exists; a nil Observer (the default) disables it.
type Observer interface {
	OnScheduled(rec URLRecord)
	OnDispatched(rec URLRecord, w Worker)
	OnProcessed(rec URLRecord)
	OnAbandoned(rec URLRecord)
	OnSeedRemoved(seed uint64, removed int)
}

type inProgressEntry struct {
	record URLRecord
	host   string
}

// Config holds the tunables Frontier needs at construction time.
type Config struct {
	// PolitenessDelay is the fallback poll interval GetNextURL uses while
	// waiting for a wakeup (Section 5). Per-host spacing is enforced by the
	// PageFetcher, which is configured with its own delay.
	PolitenessDelay time.Duration
	// Resumable records whether the store was opened in resumable mode.
	// Frontier does not read it; whether mutations are grouped into a single
	// commit per call is decided by the OrderedURLStore's Transaction.
	Resumable bool
}

// Frontier is the single-mutex, wakeup-channel-suspended facade over
// the per-host queues, the offspring counter, and the durable store
// (Section 5). All exported methods serialize on mu; GetNextURL is the
// only one that ever releases it before returning, while it waits for
// work.
type Frontier struct {
	mu sync.Mutex

	store           OrderedURLStore
	fetcher         PageFetcher
	politenessDelay time.Duration

	registry   *hostRegistry
	offspring  *offspringCounter
	inProgress map[string]*inProgressEntry
	// orphaned holds docids whose store row was deleted out from under a
	// live claim by RemoveOffspring; SetProcessed/Abandon treat these as a
	// defined no-op against the store instead of an invariant violation
	// (Section 4.5's and Section 9's resolution of the racing-removal
	// open question).
	orphaned map[uint64]struct{}

	finished bool
	wake     chan struct{}

	observer  Observer
	logger    *slog.Logger
	abortFunc func()

	recentOps map[string][]string
}

// New constructs a Frontier over store, consulting fetcher for politeness,
// and rebuilds in-memory queue/counter state from whatever the store
// already holds (Section 9: resumable recovery, every stored record is
// reloaded as freshly queued — none are pre-claimed).
func New(ctx context.Context, store OrderedURLStore, fetcher PageFetcher, cfg Config, opts ...Option) (*Frontier, error) {
	f := &Frontier{
		store:           store,
		fetcher:         fetcher,
		politenessDelay: cfg.PolitenessDelay,
		registry:        newHostRegistry(),
		offspring:       newOffspringCounter(),
		inProgress:      make(map[string]*inProgressEntry),
		orphaned:        make(map[uint64]struct{}),
		wake:            make(chan struct{}),
		logger:          slog.Default(),
		abortFunc:       func() { os.Exit(1) },
		recentOps:       make(map[string][]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.rebuild(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// Option configures optional Frontier dependencies.
type Option func(*Frontier)

func WithObserver(o Observer) Option { return func(f *Frontier) { f.observer = o } }
func WithLogger(l *slog.Logger) Option {
	return func(f *Frontier) {
		if l != nil {
			f.logger = l
		}
	}
}
func WithAbortFunc(fn func()) Option {
	return func(f *Frontier) {
		if fn != nil {
			f.abortFunc = fn
		}
	}
}

// SetObserver installs or replaces the Observer after construction, for
// callers (like the ambient metrics wiring) that need a reference to the
// constructed Frontier before they can build their Observer.
func (f *Frontier) SetObserver(o Observer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observer = o
}

func (f *Frontier) rebuild(ctx context.Context) error {
	recs, err := f.store.All(ctx)
	if err != nil {
		// Non-mutating read: retried once before surfacing (Section 7).
		recs, err = f.store.All(ctx)
	}
	if err != nil {
		return &StorageError{Op: "rebuild_scan", Err: err}
	}
	for i := range recs {
		rec := &recs[i]
		f.registry.queueFor(rec.Host).insert(rec)
		f.offspring.increment(rec.SeedDocid)
	}
	for host, q := range f.registry.hosts {
		if !q.isEmpty() {
			f.registry.markReady(host)
		}
	}
	return nil
}

func (f *Frontier) notifyLocked() {
	close(f.wake)
	f.wake = make(chan struct{})
}

func (f *Frontier) recordOp(host, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	buf := append(f.recentOps[host], msg)
	if len(buf) > 20 {
		buf = buf[len(buf)-20:]
	}
	f.recentOps[host] = buf
}

func (f *Frontier) abort(violation *InvariantViolation) {
	f.logger.Error("frontier invariant violation", "detail", violation.Detail, "recent_ops", f.recentOps)
	f.abortFunc()
}

// Schedule inserts rec if its key is not already present. inserted is
// false, with no error, on a duplicate key (Section 4.1/8).
func (f *Frontier) Schedule(ctx context.Context, rec URLRecord) (bool, error) {
	f.mu.Lock()
	inserted, err := f.scheduleLocked(ctx, rec)
	f.mu.Unlock()

	if err == nil && inserted && f.observer != nil {
		f.observer.OnScheduled(rec)
	}
	return inserted, err
}

// ScheduleAll schedules every url in order, stopping and returning the
// storage error on the first failure; urls rejected as duplicates are
// returned alongside a nil error for the ones that did not fail.
func (f *Frontier) ScheduleAll(ctx context.Context, urls []URLRecord) ([]URLRecord, error) {
	f.mu.Lock()

	var rejected, accepted []URLRecord
	for _, u := range urls {
		inserted, err := f.scheduleLocked(ctx, u)
		if err != nil {
			f.mu.Unlock()
			if f.observer != nil {
				for _, a := range accepted {
					f.observer.OnScheduled(a)
				}
			}
			return rejected, err
		}
		if !inserted {
			rejected = append(rejected, u)
			continue
		}
		accepted = append(accepted, u)
	}
	f.mu.Unlock()

	if f.observer != nil {
		for _, u := range accepted {
			f.observer.OnScheduled(u)
		}
	}
	return rejected, nil
}

func (f *Frontier) scheduleLocked(ctx context.Context, rec URLRecord) (bool, error) {
	key := KeyForRecord(rec)

	var inserted bool
	err := f.store.Transaction(ctx, func(tx OrderedURLStore) error {
		ok, err := tx.Put(ctx, key, rec)
		if err != nil {
			return err
		}
		inserted = ok
		if !ok {
			return nil
		}
		return tx.PutSeedCount(ctx, rec.SeedDocid, f.offspring.get(rec.SeedDocid)+1)
	})
	if err != nil {
		return false, &StorageError{Op: "schedule", Err: err}
	}
	if !inserted {
		return false, nil
	}

	f.offspring.increment(rec.SeedDocid)
	recCopy := rec
	q := f.registry.queueFor(rec.Host)
	q.insert(&recCopy)
	if !q.isClaimed() {
		f.registry.markReady(rec.Host)
	}
	f.recordOp(rec.Host, "schedule docid=%d", rec.Docid)
	f.notifyLocked()
	return true, nil
}

// selectEligibleLocked picks, among ready hosts whose politeness window has
// elapsed, the one whose head has the globally smallest composite key
// (Section 4.4's tie-break rule).
func (f *Frontier) selectEligibleLocked() (*URLRecord, string, bool) {
	now := time.Now()

	var best *URLRecord
	var bestHost string
	var bestKey Key
	for _, host := range f.registry.readyHosts() {
		q := f.registry.hosts[host]
		rec := q.head()
		if rec == nil {
			continue
		}
		if f.fetcher.NextFetchTime(host).After(now) {
			continue
		}
		k := KeyForRecord(*rec)
		if best == nil || k.Less(bestKey) {
			best, bestHost, bestKey = rec, host, k
		}
	}
	if best == nil {
		return nil, "", false
	}
	return best, bestHost, true
}

func (f *Frontier) claimLocked(w Worker, host string, rec *URLRecord) {
	q := f.registry.hosts[host]
	q.claimHead()
	f.registry.unmarkReady(host)
	f.inProgress[w.ID()] = &inProgressEntry{record: *rec, host: host}
	f.fetcher.Select(*rec)
	f.recordOp(host, "claim docid=%d worker=%s", rec.Docid, w.ID())
}

// GetNextURL returns the next URL to dispatch to w, suspending on the
// frontier's wakeup channel (broadcast on every schedule/release) until
// one is available, politenessDelay elapses, or ctx is cancelled. It
// returns an *Interrupted error once Finish has been called.
//
// This replaces the teacher's worker.go busy-poll loop (time.After(100ms))
// with an explicit wakeup channel, since Section 5 names the wakeup
// sources precisely enough to suspend rather than poll; a bare sync.Cond
// was not used because it cannot be composed with ctx.Done().
func (f *Frontier) GetNextURL(ctx context.Context, w Worker) (*URLRecord, error) {
	for {
		f.mu.Lock()
		if f.finished {
			f.mu.Unlock()
			return nil, &Interrupted{}
		}

		rec, host, ok := f.selectEligibleLocked()
		if ok {
			f.claimLocked(w, host, rec)
			f.mu.Unlock()
			if f.observer != nil {
				f.observer.OnDispatched(*rec, w)
			}
			return rec, nil
		}

		waitCh := f.wake
		timeout := f.politenessDelay
		if timeout <= 0 {
			timeout = 100 * time.Millisecond
		}
		f.mu.Unlock()

		timer := time.NewTimer(timeout)
		select {
		case <-waitCh:
			timer.Stop()
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// SetProcessed marks u, previously dispatched to w, as successfully
// processed: it is deleted from the store and its seed's offspring count
// decremented. If u's docid was orphaned by a racing RemoveOffspring, this
// is a no-op against the store and simply clears the in-progress slot
// (Section 4.5/9).
//
// A mismatched claim here is returned as an *InvariantViolation error
// rather than routed through abort() the way RemoveOffspring's deletion-
// count check is: Section 7 frames both as fatal caller-protocol errors,
// but returning this one keeps SetProcessed/Abandon callable from tests
// without an injected abort function.
func (f *Frontier) SetProcessed(ctx context.Context, w Worker, u URLRecord) error {
	f.mu.Lock()

	entry, ok := f.inProgress[w.ID()]
	if !ok || entry.record.Docid != u.Docid {
		f.mu.Unlock()
		return &InvariantViolation{Detail: fmt.Sprintf("setProcessed: worker %s has no matching claim for docid %d", w.ID(), u.Docid)}
	}
	host := entry.host
	delete(f.inProgress, w.ID())

	if _, isOrphan := f.orphaned[u.Docid]; isOrphan {
		delete(f.orphaned, u.Docid)
		f.notifyLocked()
		f.mu.Unlock()
		return nil
	}

	key := KeyForRecord(u)
	newCount := f.offspring.get(u.SeedDocid) - 1
	err := f.store.Transaction(ctx, func(tx OrderedURLStore) error {
		if err := tx.Delete(ctx, key); err != nil {
			return err
		}
		if newCount <= 0 {
			return tx.DeleteSeedCount(ctx, u.SeedDocid)
		}
		return tx.PutSeedCount(ctx, u.SeedDocid, newCount)
	})
	if err != nil {
		f.mu.Unlock()
		return &StorageError{Op: "set_processed", Err: err}
	}

	f.offspring.decrement(u.SeedDocid)
	seedDone := f.offspring.get(u.SeedDocid) == 0

	if q := f.registry.hosts[host]; q != nil {
		q.releaseHead(false)
		if q.isEmpty() {
			f.registry.forget(host)
		} else if !q.isClaimed() {
			f.registry.markReady(host)
		}
	}
	f.recordOp(host, "set_processed docid=%d worker=%s", u.Docid, w.ID())
	f.notifyLocked()
	f.mu.Unlock()

	if f.observer != nil {
		f.observer.OnProcessed(u)
	}
	if seedDone {
		w.OnSeedEnd(u.SeedDocid)
	}
	return nil
}

// Abandon releases a dispatched claim without deleting u from the store,
// returning it to its per-host queue in sorted order and restoring the
// politeness window Select consumed. A worker-side failure, not a
// protocol error, is the expected caller (Section 4.5).
func (f *Frontier) Abandon(ctx context.Context, w Worker, u URLRecord) error {
	f.mu.Lock()

	entry, ok := f.inProgress[w.ID()]
	if !ok || entry.record.Docid != u.Docid {
		f.mu.Unlock()
		return &InvariantViolation{Detail: fmt.Sprintf("abandon: worker %s has no matching claim for docid %d", w.ID(), u.Docid)}
	}
	host := entry.host
	delete(f.inProgress, w.ID())

	if _, isOrphan := f.orphaned[u.Docid]; isOrphan {
		delete(f.orphaned, u.Docid)
		f.notifyLocked()
		f.mu.Unlock()
		return nil
	}

	if q := f.registry.hosts[host]; q != nil {
		q.releaseHead(true)
		f.registry.markReady(host)
	}
	f.recordOp(host, "abandon docid=%d worker=%s", u.Docid, w.ID())
	f.notifyLocked()
	f.mu.Unlock()

	f.fetcher.Unselect(u)
	if f.observer != nil {
		f.observer.OnAbandoned(u)
	}
	return nil
}

// RemoveOffspring deletes every live descendant of seed (including one
// currently claimed, if any) from the store and per-host queues, and
// resets its offspring counter to zero. It returns the number of records
// deleted, which must equal the counter's prior value; a mismatch aborts
// the process via the configured abort function (Section 4.5/8's
// deletion-count invariant).
func (f *Frontier) RemoveOffspring(ctx context.Context, seed uint64) (int, error) {
	f.mu.Lock()

	expected := f.offspring.get(seed)

	var removed []URLRecord
	err := f.store.Transaction(ctx, func(tx OrderedURLStore) error {
		r, err := tx.RangeDelete(ctx, func(rec URLRecord) bool { return rec.SeedDocid == seed })
		if err != nil {
			return err
		}
		removed = r
		return tx.DeleteSeedCount(ctx, seed)
	})
	if err != nil {
		f.mu.Unlock()
		return 0, &StorageError{Op: "remove_offspring", Err: err}
	}

	if len(removed) != expected {
		violation := &InvariantViolation{
			Detail: fmt.Sprintf("removeOffspring(%d): counter said %d live descendants, deleted %d", seed, expected, len(removed)),
		}
		f.mu.Unlock()
		f.abort(violation)
		return 0, violation
	}

	byHost := make(map[string][]uint64)
	for _, rec := range removed {
		byHost[rec.Host] = append(byHost[rec.Host], rec.Docid)
	}
	for host, docids := range byHost {
		q := f.registry.hosts[host]
		if q == nil {
			continue
		}
		set := make(map[uint64]struct{}, len(docids))
		for _, d := range docids {
			set[d] = struct{}{}
		}
		_, claimedRec := q.removeWhere(func(rec *URLRecord) bool {
			_, in := set[rec.Docid]
			return in
		})
		if claimedRec != nil {
			f.orphaned[claimedRec.Docid] = struct{}{}
		}
		if q.isEmpty() {
			f.registry.forget(host)
		} else if !q.isClaimed() {
			f.registry.markReady(host)
		}
	}

	if err := f.offspring.reset(seed, expected); err != nil {
		f.mu.Unlock()
		f.abort(err.(*InvariantViolation))
		return 0, err
	}

	f.recordOp("*", "remove_offspring seed=%d removed=%d", seed, len(removed))
	f.notifyLocked()
	f.mu.Unlock()

	if f.observer != nil {
		f.observer.OnSeedRemoved(seed, len(removed))
	}
	return len(removed), nil
}

// Finish makes every current and future GetNextURL call return
// *Interrupted, for orderly shutdown.
func (f *Frontier) Finish() {
	f.mu.Lock()
	f.finished = true
	f.notifyLocked()
	f.mu.Unlock()
}

// QueueSize returns the total number of URLs currently held across every
// per-host queue, claimed or waiting.
func (f *Frontier) QueueSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.registry.hosts {
		n += len(q.items)
		if q.claimed != nil {
			n++
		}
	}
	return n
}

// NumInProgress returns the number of claims currently outstanding.
func (f *Frontier) NumInProgress() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inProgress)
}

// NumOffspring returns the current live-descendant count for seed.
func (f *Frontier) NumOffspring(seed uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offspring.get(seed)
}

// Close releases the underlying store.
func (f *Frontier) Close() error {
	return f.store.Close()
}
