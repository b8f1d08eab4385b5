package frontier

import (
	"container/list"
	"sort"
)

// hostQueue is the per-host arena described in Section 9: a single sorted
// slice rather than separate head/tail pointers, so there is never a place
// for two cached positions to drift out of sync with each other.
//
// The currently-claimed head (if any) is held out of the sorted slice
// entirely, in claimed. This keeps the invariant "items is strictly
// increasing by composite key" exact at all times, and makes the Section 4.2
// boundary case — a lower-key URL scheduled while the head is claimed —
// fall out naturally: the new URL is inserted into items in sorted order,
// becomes items[0], and is handed out next once the claim is released
// without requeue.
type hostQueue struct {
	claimed *URLRecord
	items   []*URLRecord
}

func (q *hostQueue) isEmpty() bool {
	return q.claimed == nil && len(q.items) == 0
}

func (q *hostQueue) isClaimed() bool {
	return q.claimed != nil
}

// head returns the record that would be dispatched next: the claimed
// record if one is held, otherwise the smallest-key waiting record.
func (q *hostQueue) head() *URLRecord {
	if q.claimed != nil {
		return q.claimed
	}
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// insert places rec into items in sorted position. rec is never compared
// against claimed: a claimed record is out of band until released.
func (q *hostQueue) insert(rec *URLRecord) {
	k := KeyForRecord(*rec)
	i := sort.Search(len(q.items), func(i int) bool {
		return !KeyForRecord(*q.items[i]).Less(k)
	})
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = rec
}

// claimHead detaches the current items[0] and pins it as the claimed
// record. Returns nil if already claimed or empty.
func (q *hostQueue) claimHead() *URLRecord {
	if q.claimed != nil || len(q.items) == 0 {
		return nil
	}
	rec := q.items[0]
	q.items = q.items[1:]
	q.claimed = rec
	return rec
}

// releaseHead clears the claim. If requeue is true the claimed record is
// reinserted in sorted order (used by Abandon, since the record was never
// deleted from the store). If false it is simply dropped (SetProcessed has
// already deleted it from the store).
func (q *hostQueue) releaseHead(requeue bool) {
	if q.claimed == nil {
		return
	}
	rec := q.claimed
	q.claimed = nil
	if requeue {
		q.insert(rec)
	}
}

// removeWhere deletes every waiting record matching pred, and the claimed
// record too if it matches. Returns the removed records and, separately,
// the claimed record if it was among them (the caller must flag that
// docid as orphaned: its owning worker still holds a stale claim).
func (q *hostQueue) removeWhere(pred func(*URLRecord) bool) (removed []*URLRecord, removedClaimed *URLRecord) {
	kept := q.items[:0]
	for _, rec := range q.items {
		if pred(rec) {
			removed = append(removed, rec)
		} else {
			kept = append(kept, rec)
		}
	}
	q.items = kept
	if q.claimed != nil && pred(q.claimed) {
		removedClaimed = q.claimed
		removed = append(removed, q.claimed)
		q.claimed = nil
	}
	return removed, removedClaimed
}

// hostRegistry owns every per-host queue plus the "ready set": hosts with a
// non-empty queue and an unclaimed head, in FIFO order of becoming ready.
// The dispatcher still scans the whole ready set for the globally smallest
// eligible key (Section 4.4's tie-break rule); the FIFO list only bounds
// that scan to hosts that could possibly have something to offer.
type hostRegistry struct {
	hosts      map[string]*hostQueue
	ready      *list.List
	readyElems map[string]*list.Element
}

func newHostRegistry() *hostRegistry {
	return &hostRegistry{
		hosts:      make(map[string]*hostQueue),
		ready:      list.New(),
		readyElems: make(map[string]*list.Element),
	}
}

func (r *hostRegistry) queueFor(host string) *hostQueue {
	q, ok := r.hosts[host]
	if !ok {
		q = &hostQueue{}
		r.hosts[host] = q
	}
	return q
}

func (r *hostRegistry) markReady(host string) {
	if _, ok := r.readyElems[host]; ok {
		return
	}
	r.readyElems[host] = r.ready.PushBack(host)
}

func (r *hostRegistry) unmarkReady(host string) {
	if e, ok := r.readyElems[host]; ok {
		r.ready.Remove(e)
		delete(r.readyElems, host)
	}
}

// forget destroys a host's queue entirely. Only safe to call once the
// queue is empty and unclaimed (Section 4.2: "destroyed when its list is
// empty and no head is claimed").
func (r *hostRegistry) forget(host string) {
	delete(r.hosts, host)
	r.unmarkReady(host)
}

func (r *hostRegistry) readyHosts() []string {
	hosts := make([]string, 0, r.ready.Len())
	for e := r.ready.Front(); e != nil; e = e.Next() {
		hosts = append(hosts, e.Value.(string))
	}
	return hosts
}
