package schema

// ScheduleURLRequest schedules a single URL onto the frontier.
type ScheduleURLRequest struct {
	Docid       uint64 `json:"docid" binding:"required"`
	SeedDocid   uint64 `json:"seed_docid"`
	ParentDocid uint64 `json:"parent_docid"`
	Priority    int8   `json:"priority"`
	Depth       uint16 `json:"depth"`
	URL         string `json:"url" binding:"required,url"`
}

// ScheduleBatchRequest schedules many URLs in one call.
type ScheduleBatchRequest struct {
	URLs []ScheduleURLRequest `json:"urls" binding:"required,dive"`
}

// ScheduleResponse reports whether the requested URL was accepted (false
// means its composite key already existed).
type ScheduleResponse struct {
	Accepted bool `json:"accepted"`
}

// ScheduleBatchResponse reports the subset of requested URLs that were
// actually accepted.
type ScheduleBatchResponse struct {
	Accepted []ScheduleURLRequest `json:"accepted"`
	Rejected int                  `json:"rejected"`
}

// NextURLResponse is returned by the long-polling dispatch endpoint.
type NextURLResponse struct {
	Docid       uint64 `json:"docid"`
	SeedDocid   uint64 `json:"seed_docid"`
	ParentDocid uint64 `json:"parent_docid"`
	Priority    int8   `json:"priority"`
	Depth       uint16 `json:"depth"`
	URL         string `json:"url"`
	Host        string `json:"host"`
}

// CompleteURLRequest identifies the URL a worker is reporting on.
type CompleteURLRequest struct {
	Docid       uint64 `json:"docid" binding:"required"`
	SeedDocid   uint64 `json:"seed_docid"`
	ParentDocid uint64 `json:"parent_docid"`
	Priority    int8   `json:"priority"`
	Depth       uint16 `json:"depth"`
	URL         string `json:"url" binding:"required"`
}

// StatsResponse is the admin snapshot of frontier size.
type StatsResponse struct {
	QueueSize    int `json:"queue_size"`
	NumInProgress int `json:"num_in_progress"`
}

// ValidateResponse reports the outcome of an on-demand Section 8 check.
type ValidateResponse struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
}
