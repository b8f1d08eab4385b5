package kafka

import "time"

// SeedMessage is the payload a seed publisher sends on the seeds topic to
// enqueue a new crawl root.
type SeedMessage struct {
	Docid     uint64 `json:"docid"`
	SeedDocid uint64 `json:"seed_docid"`
	URL       string `json:"url"`
	Priority  int8   `json:"priority"`
}

// DispatchEvent is published whenever the frontier hands a URL to a
// worker, letting downstream consumers (dashboards, crawl recorders)
// observe dispatch activity without touching the frontier directly.
type DispatchEvent struct {
	Docid     uint64    `json:"docid"`
	SeedDocid uint64    `json:"seed_docid"`
	Host      string    `json:"host"`
	URL       string    `json:"url"`
	WorkerID  string    `json:"worker_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SeedDoneEvent is published once a seed's last live offspring has been
// processed, mirroring the frontier's on_seed_end callback, and after a
// seed's offspring are removed through DELETE /seeds/:seedDocid.
type SeedDoneEvent struct {
	SeedDocid uint64    `json:"seed_docid"`
	Timestamp time.Time `json:"timestamp"`
}
