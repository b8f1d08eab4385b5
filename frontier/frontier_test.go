package frontier

import (
	"context"
	"errors"
	"testing"
	"time"
)

// alwaysReadyFetcher never imposes a politeness delay, for tests that only
// care about ordering and claim/release bookkeeping.
type alwaysReadyFetcher struct{}

func (alwaysReadyFetcher) NextFetchTime(host string) time.Time { return time.Time{} }
func (alwaysReadyFetcher) Select(rec URLRecord)                 {}
func (alwaysReadyFetcher) Unselect(rec URLRecord)               {}

// blockingFetcher reports every host as polite-blocked far into the future.
type blockingFetcher struct{}

func (blockingFetcher) NextFetchTime(host string) time.Time { return time.Now().Add(time.Hour) }
func (blockingFetcher) Select(rec URLRecord)                 {}
func (blockingFetcher) Unselect(rec URLRecord)               {}

func newTestFrontier(t *testing.T, store OrderedURLStore, fetcher PageFetcher) *Frontier {
	t.Helper()
	f, err := New(context.Background(), store, fetcher, Config{PolitenessDelay: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func TestScheduleDispatchesInCompositeKeyOrder(t *testing.T) {
	f := newTestFrontier(t, newMemStore(), alwaysReadyFetcher{})
	ctx := context.Background()

	urls := []URLRecord{
		{Docid: 3, SeedDocid: 1, Priority: 0, Depth: 1, Host: "a.example.com", URL: "https://a.example.com/3"},
		{Docid: 1, SeedDocid: 1, Priority: -1, Depth: 0, Host: "a.example.com", URL: "https://a.example.com/1"},
		{Docid: 2, SeedDocid: 1, Priority: 0, Depth: 0, Host: "a.example.com", URL: "https://a.example.com/2"},
	}
	if _, err := f.ScheduleAll(ctx, urls); err != nil {
		t.Fatalf("ScheduleAll() error = %v", err)
	}

	wantOrder := []uint64{1, 2, 3}
	w := NewWorker("w1", nil)
	for _, want := range wantOrder {
		u, err := f.GetNextURL(ctx, w)
		if err != nil {
			t.Fatalf("GetNextURL() error = %v", err)
		}
		if u.Docid != want {
			t.Fatalf("GetNextURL() docid = %d, want %d", u.Docid, want)
		}
		if err := f.SetProcessed(ctx, w, *u); err != nil {
			t.Fatalf("SetProcessed() error = %v", err)
		}
	}
}

func TestScheduleDuplicateKeyIsNoop(t *testing.T) {
	f := newTestFrontier(t, newMemStore(), alwaysReadyFetcher{})
	ctx := context.Background()

	rec := URLRecord{Docid: 1, SeedDocid: 1, Host: "a.example.com", URL: "https://a.example.com/1"}
	inserted, err := f.Schedule(ctx, rec)
	if err != nil || !inserted {
		t.Fatalf("first Schedule() = (%v, %v), want (true, nil)", inserted, err)
	}
	inserted, err = f.Schedule(ctx, rec)
	if err != nil || inserted {
		t.Fatalf("duplicate Schedule() = (%v, %v), want (false, nil)", inserted, err)
	}
	if got := f.QueueSize(); got != 1 {
		t.Fatalf("QueueSize() = %d, want 1", got)
	}
}

func TestSetProcessedFiresOnSeedEndOnLastOffspring(t *testing.T) {
	f := newTestFrontier(t, newMemStore(), alwaysReadyFetcher{})
	ctx := context.Background()

	seedRec := URLRecord{Docid: 1, SeedDocid: 1, Host: "a.example.com", URL: "https://a.example.com/"}
	child1 := URLRecord{Docid: 2, SeedDocid: 1, Host: "a.example.com", URL: "https://a.example.com/c1"}
	child2 := URLRecord{Docid: 3, SeedDocid: 1, Host: "a.example.com", URL: "https://a.example.com/c2"}
	if _, err := f.ScheduleAll(ctx, []URLRecord{seedRec, child1, child2}); err != nil {
		t.Fatalf("ScheduleAll() error = %v", err)
	}

	var seedEnds []uint64
	w := NewWorker("w1", func(seed uint64) { seedEnds = append(seedEnds, seed) })

	for i := 0; i < 3; i++ {
		u, err := f.GetNextURL(ctx, w)
		if err != nil {
			t.Fatalf("GetNextURL() error = %v", err)
		}
		if err := f.SetProcessed(ctx, w, *u); err != nil {
			t.Fatalf("SetProcessed() error = %v", err)
		}
		if i < 2 && len(seedEnds) != 0 {
			t.Fatalf("OnSeedEnd fired early after %d of 3 completions", i+1)
		}
	}
	if len(seedEnds) != 1 || seedEnds[0] != 1 {
		t.Fatalf("seedEnds = %v, want [1]", seedEnds)
	}
	if got := f.NumOffspring(1); got != 0 {
		t.Fatalf("NumOffspring(1) = %d, want 0", got)
	}
}

func TestAbandonReturnsSameURLToDispatch(t *testing.T) {
	f := newTestFrontier(t, newMemStore(), alwaysReadyFetcher{})
	ctx := context.Background()

	rec := URLRecord{Docid: 1, SeedDocid: 1, Host: "a.example.com", URL: "https://a.example.com/1"}
	if _, err := f.Schedule(ctx, rec); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	w := NewWorker("w1", nil)
	u, err := f.GetNextURL(ctx, w)
	if err != nil {
		t.Fatalf("GetNextURL() error = %v", err)
	}
	if err := f.Abandon(ctx, w, *u); err != nil {
		t.Fatalf("Abandon() error = %v", err)
	}
	if got := f.NumInProgress(); got != 0 {
		t.Fatalf("NumInProgress() after abandon = %d, want 0", got)
	}

	u2, err := f.GetNextURL(ctx, w)
	if err != nil {
		t.Fatalf("GetNextURL() after abandon error = %v", err)
	}
	if u2.Docid != rec.Docid {
		t.Fatalf("GetNextURL() after abandon returned docid %d, want %d", u2.Docid, rec.Docid)
	}
}

func TestGetNextURLBlocksWhilePolite(t *testing.T) {
	f := newTestFrontier(t, newMemStore(), blockingFetcher{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	rec := URLRecord{Docid: 1, SeedDocid: 1, Host: "a.example.com", URL: "https://a.example.com/1"}
	if _, err := f.Schedule(ctx, rec); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	_, err := f.GetNextURL(ctx, NewWorker("w1", nil))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("GetNextURL() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestGetNextURLReturnsInterruptedAfterFinish(t *testing.T) {
	f := newTestFrontier(t, newMemStore(), alwaysReadyFetcher{})
	f.Finish()

	_, err := f.GetNextURL(context.Background(), NewWorker("w1", nil))
	var interrupted *Interrupted
	if !errors.As(err, &interrupted) {
		t.Fatalf("GetNextURL() after Finish error = %v, want *Interrupted", err)
	}
}

func TestRemoveOffspringDeletesLiveDescendantsIncludingClaimed(t *testing.T) {
	f := newTestFrontier(t, newMemStore(), alwaysReadyFetcher{})
	ctx := context.Background()

	seed := uint64(1)
	urls := []URLRecord{
		{Docid: 1, SeedDocid: seed, Priority: -1, Host: "a.example.com", URL: "https://a.example.com/1"},
		{Docid: 2, SeedDocid: seed, Host: "a.example.com", URL: "https://a.example.com/2"},
		{Docid: 3, SeedDocid: seed, Host: "a.example.com", URL: "https://a.example.com/3"},
		{Docid: 4, SeedDocid: seed, Host: "a.example.com", URL: "https://a.example.com/4"},
		{Docid: 5, SeedDocid: seed, Host: "a.example.com", URL: "https://a.example.com/5"},
	}
	if _, err := f.ScheduleAll(ctx, urls); err != nil {
		t.Fatalf("ScheduleAll() error = %v", err)
	}

	w := NewWorker("w1", nil)
	claimed, err := f.GetNextURL(ctx, w) // claims docid 1 (smallest priority)
	if err != nil {
		t.Fatalf("GetNextURL() error = %v", err)
	}
	if claimed.Docid != 1 {
		t.Fatalf("claimed docid = %d, want 1", claimed.Docid)
	}

	removed, err := f.RemoveOffspring(ctx, seed)
	if err != nil {
		t.Fatalf("RemoveOffspring() error = %v", err)
	}
	if removed != 5 {
		t.Fatalf("RemoveOffspring() removed = %d, want 5 (including the claimed docid)", removed)
	}
	if got := f.QueueSize(); got != 0 {
		t.Fatalf("QueueSize() after RemoveOffspring = %d, want 0", got)
	}
	// The claimed worker's slot survives until it reports back.
	if got := f.NumInProgress(); got != 1 {
		t.Fatalf("NumInProgress() after RemoveOffspring = %d, want 1 (orphaned claim)", got)
	}
	if err := f.Validate(ctx); err != nil {
		t.Fatalf("Validate() after RemoveOffspring = %v, want nil", err)
	}

	// The worker's eventual setProcessed is a defined no-op against the store.
	if err := f.SetProcessed(ctx, w, *claimed); err != nil {
		t.Fatalf("SetProcessed() on orphaned claim error = %v, want nil", err)
	}
	if got := f.NumInProgress(); got != 0 {
		t.Fatalf("NumInProgress() after orphaned setProcessed = %d, want 0", got)
	}
	if err := f.Validate(ctx); err != nil {
		t.Fatalf("Validate() after orphaned setProcessed = %v, want nil", err)
	}
}

func TestRestartRecoveryTreatsInProgressAsFreshlyQueued(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	f1 := newTestFrontier(t, store, alwaysReadyFetcher{})
	seed := uint64(1)
	urls := []URLRecord{
		{Docid: 1, SeedDocid: seed, Host: "a.example.com", URL: "https://a.example.com/"},
		{Docid: 2, SeedDocid: seed, Host: "a.example.com", URL: "https://a.example.com/c1"},
		{Docid: 3, SeedDocid: seed, Host: "a.example.com", URL: "https://a.example.com/c2"},
	}
	if _, err := f1.ScheduleAll(ctx, urls); err != nil {
		t.Fatalf("ScheduleAll() error = %v", err)
	}
	if _, err := f1.GetNextURL(ctx, NewWorker("w1", nil)); err != nil {
		t.Fatalf("GetNextURL() error = %v", err)
	}
	// Simulate a crash: no SetProcessed/Abandon call, no Close.

	f2 := newTestFrontier(t, store, alwaysReadyFetcher{})
	if got := f2.QueueSize(); got != 3 {
		t.Fatalf("QueueSize() after restart = %d, want 3 (nothing pre-claimed)", got)
	}
	if got := f2.NumInProgress(); got != 0 {
		t.Fatalf("NumInProgress() after restart = %d, want 0", got)
	}
	if err := f2.Validate(ctx); err != nil {
		t.Fatalf("Validate() after restart = %v, want nil", err)
	}
}

func TestSetProcessedRejectsMismatchedClaim(t *testing.T) {
	f := newTestFrontier(t, newMemStore(), alwaysReadyFetcher{})
	ctx := context.Background()

	w := NewWorker("w1", nil)
	other := URLRecord{Docid: 99, SeedDocid: 99}
	err := f.SetProcessed(ctx, w, other)
	var violation *InvariantViolation
	if !errors.As(err, &violation) {
		t.Fatalf("SetProcessed() with no matching claim error = %v, want *InvariantViolation", err)
	}
}

// gaugeSamplingObserver mimics app.metricsObserver: every callback re-enters
// the frontier to sample a gauge. ScheduleAll must fire these after
// releasing f.mu, or this deadlocks on the first accepted url of a batch.
type gaugeSamplingObserver struct {
	f            *Frontier
	scheduled    int
	lastQueueLen int
}

func (o *gaugeSamplingObserver) OnScheduled(rec URLRecord) {
	o.scheduled++
	o.lastQueueLen = o.f.QueueSize()
}
func (o *gaugeSamplingObserver) OnDispatched(rec URLRecord, w Worker) { o.f.NumInProgress() }
func (o *gaugeSamplingObserver) OnProcessed(rec URLRecord)            { o.f.QueueSize() }
func (o *gaugeSamplingObserver) OnAbandoned(rec URLRecord)            { o.f.QueueSize() }
func (o *gaugeSamplingObserver) OnSeedRemoved(seed uint64, removed int) { o.f.QueueSize() }

func TestScheduleAllDoesNotDeadlockWhenObserverResamplesGauges(t *testing.T) {
	f := newTestFrontier(t, newMemStore(), alwaysReadyFetcher{})
	obs := &gaugeSamplingObserver{f: f}
	f.SetObserver(obs)
	ctx := context.Background()

	urls := []URLRecord{
		{Docid: 1, SeedDocid: 1, Host: "a.example.com", URL: "https://a.example.com/1"},
		{Docid: 2, SeedDocid: 1, Host: "a.example.com", URL: "https://a.example.com/2"},
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.ScheduleAll(ctx, urls)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ScheduleAll() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ScheduleAll() deadlocked: observer re-entering f.mu from OnScheduled")
	}

	if obs.scheduled != 2 {
		t.Fatalf("observer saw %d OnScheduled calls, want 2", obs.scheduled)
	}
}

func TestOrphanedClaimReleaseDoesNotDropSurvivingWorkersClaim(t *testing.T) {
	f := newTestFrontier(t, newMemStore(), alwaysReadyFetcher{})
	ctx := context.Background()

	const host = "shared.example.com"
	seedA, seedB := uint64(1), uint64(2)
	if _, err := f.ScheduleAll(ctx, []URLRecord{
		{Docid: 1, SeedDocid: seedA, Priority: -1, Host: host, URL: "https://shared.example.com/a1"},
		{Docid: 2, SeedDocid: seedB, Priority: 0, Host: host, URL: "https://shared.example.com/b2"},
	}); err != nil {
		t.Fatalf("ScheduleAll() error = %v", err)
	}

	w1 := NewWorker("w1", nil)
	claimed1, err := f.GetNextURL(ctx, w1) // claims docid 1 (seed A, smaller key)
	if err != nil {
		t.Fatalf("GetNextURL() error = %v", err)
	}
	if claimed1.Docid != 1 {
		t.Fatalf("w1 claimed docid = %d, want 1", claimed1.Docid)
	}

	// Removing seed A's offspring orphans w1's claim but leaves seed B's
	// docid 2 live on the same host queue, which becomes ready again.
	if _, err := f.RemoveOffspring(ctx, seedA); err != nil {
		t.Fatalf("RemoveOffspring() error = %v", err)
	}

	w2 := NewWorker("w2", nil)
	claimed2, err := f.GetNextURL(ctx, w2) // claims docid 2 (seed B)
	if err != nil {
		t.Fatalf("GetNextURL() error = %v", err)
	}
	if claimed2.Docid != 2 {
		t.Fatalf("w2 claimed docid = %d, want 2", claimed2.Docid)
	}
	if got := f.NumInProgress(); got != 2 {
		t.Fatalf("NumInProgress() before orphan cleanup = %d, want 2", got)
	}

	// w1's eventual report on its orphaned claim must not touch the host
	// queue: w2's live claim on the same host must survive untouched.
	if err := f.SetProcessed(ctx, w1, *claimed1); err != nil {
		t.Fatalf("SetProcessed() on orphaned claim error = %v, want nil", err)
	}
	if got := f.NumInProgress(); got != 1 {
		t.Fatalf("NumInProgress() after orphaned cleanup = %d, want 1 (w2's live claim)", got)
	}
	if err := f.Validate(ctx); err != nil {
		t.Fatalf("Validate() after orphaned cleanup = %v, want nil", err)
	}

	if err := f.SetProcessed(ctx, w2, *claimed2); err != nil {
		t.Fatalf("SetProcessed() for w2's surviving claim error = %v, want nil", err)
	}
	if got := f.NumInProgress(); got != 0 {
		t.Fatalf("NumInProgress() after w2 completes = %d, want 0", got)
	}
	if err := f.Validate(ctx); err != nil {
		t.Fatalf("Validate() after w2 completes = %v, want nil", err)
	}
}
