package frontier

// Worker is the capability the frontier needs from a caller of GetNextURL:
// a stable identifier used to key the in-progress table, and a callback
// invoked when the last live offspring of a seed completes naturally
// (Section 6).
type Worker interface {
	ID() string
	OnSeedEnd(seedDocid uint64)
}

// simpleWorker is a minimal Worker for callers that only need an identity
// and an optional completion callback (used by the CLI, the HTTP surface,
// and tests), grounded on indexer/worker.go's CrawlWorker identity field.
type simpleWorker struct {
	id        string
	onSeedEnd func(seedDocid uint64)
}

// NewWorker builds a Worker from a stable id and an optional OnSeedEnd
// callback (nil is a valid, no-op callback).
func NewWorker(id string, onSeedEnd func(seedDocid uint64)) Worker {
	return &simpleWorker{id: id, onSeedEnd: onSeedEnd}
}

func (w *simpleWorker) ID() string { return w.id }

func (w *simpleWorker) OnSeedEnd(seedDocid uint64) {
	if w.onSeedEnd != nil {
		w.onSeedEnd(seedDocid)
	}
}
