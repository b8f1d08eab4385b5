package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crawlfrontier/frontier/frontier"
	"github.com/crawlfrontier/frontier/kafka"
	"github.com/crawlfrontier/frontier/observability"
	"github.com/crawlfrontier/frontier/schema"
)

// EventPublisher is the subset of kafka.Producer the handler depends on,
// narrowed so tests can substitute a fake and so the handler never needs
// sarama's concrete type.
type EventPublisher interface {
	SendMessage(topic, key, value string) error
}

// FrontierHandler exposes the frontier facade over HTTP: seed/URL intake,
// the worker dispatch protocol, seed removal, and read-only diagnostics,
// grounded on the teacher's handlers/project.go request/response shape.
type FrontierHandler struct {
	frontier    *frontier.Frontier
	producer    EventPublisher
	eventsTopic string
	metrics     *observability.Metrics
}

// NewFrontierHandler wires f to the HTTP surface. producer and metrics may
// be nil; when nil, event publication and metric recording are skipped.
func NewFrontierHandler(f *frontier.Frontier, producer EventPublisher, eventsTopic string, metrics *observability.Metrics) *FrontierHandler {
	return &FrontierHandler{frontier: f, producer: producer, eventsTopic: eventsTopic, metrics: metrics}
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in url %q", rawURL)
	}
	return host, nil
}

func toRecord(docid, seedDocid, parentDocid uint64, priority int8, depth uint16, rawURL string) (frontier.URLRecord, error) {
	host, err := hostOf(rawURL)
	if err != nil {
		return frontier.URLRecord{}, err
	}
	if seedDocid == 0 {
		seedDocid = docid
	}
	return frontier.URLRecord{
		Docid:       docid,
		SeedDocid:   seedDocid,
		ParentDocid: parentDocid,
		Priority:    priority,
		Depth:       depth,
		URL:         rawURL,
		Host:        host,
	}, nil
}

// ScheduleURL handles POST /seeds (single-URL schedule).
func (h *FrontierHandler) ScheduleURL(c *gin.Context) {
	var req schema.ScheduleURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := toRecord(req.Docid, req.SeedDocid, req.ParentDocid, req.Priority, req.Depth, req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url: " + err.Error()})
		return
	}

	accepted, err := h.frontier.Schedule(c.Request.Context(), rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, schema.ScheduleResponse{Accepted: accepted})
}

// ScheduleBatch handles POST /urls/batch.
func (h *FrontierHandler) ScheduleBatch(c *gin.Context) {
	var req schema.ScheduleBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recs := make([]frontier.URLRecord, 0, len(req.URLs))
	byDocid := make(map[uint64]schema.ScheduleURLRequest, len(req.URLs))
	for _, u := range req.URLs {
		rec, err := toRecord(u.Docid, u.SeedDocid, u.ParentDocid, u.Priority, u.Depth, u.URL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url: " + err.Error()})
			return
		}
		recs = append(recs, rec)
		byDocid[u.Docid] = u
	}

	rejected, err := h.frontier.ScheduleAll(c.Request.Context(), recs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rejectedDocids := make(map[uint64]struct{}, len(rejected))
	for _, rec := range rejected {
		rejectedDocids[rec.Docid] = struct{}{}
	}

	resp := schema.ScheduleBatchResponse{Rejected: len(rejected)}
	for _, rec := range recs {
		if _, wasRejected := rejectedDocids[rec.Docid]; !wasRejected {
			resp.Accepted = append(resp.Accepted, byDocid[rec.Docid])
		}
	}
	c.JSON(http.StatusOK, resp)
}

// NextURL handles POST /workers/:workerID/next, long-polling on the
// request's context until a URL is available, the context is cancelled,
// or the frontier has been told to stop.
func (h *FrontierHandler) NextURL(c *gin.Context) {
	workerID := c.Param("workerID")
	w := frontier.NewWorker(workerID, h.onSeedEnd)

	started := time.Now()
	rec, err := h.frontier.GetNextURL(c.Request.Context(), w)
	if err != nil {
		switch err.(type) {
		case *frontier.Interrupted:
			c.JSON(http.StatusGone, gin.H{"error": "frontier finished"})
		default:
			c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
		}
		return
	}

	if h.metrics != nil {
		observability.RecordDispatchWait(h.metrics, time.Since(started))
	}
	h.publishDispatch(*rec, workerID)

	c.JSON(http.StatusOK, schema.NextURLResponse{
		Docid: rec.Docid, SeedDocid: rec.SeedDocid, ParentDocid: rec.ParentDocid,
		Priority: rec.Priority, Depth: rec.Depth, URL: rec.URL, Host: rec.Host,
	})
}

// Processed handles POST /workers/:workerID/processed.
func (h *FrontierHandler) Processed(c *gin.Context) {
	workerID := c.Param("workerID")
	var req schema.CompleteURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := toRecord(req.Docid, req.SeedDocid, req.ParentDocid, req.Priority, req.Depth, req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url: " + err.Error()})
		return
	}

	w := frontier.NewWorker(workerID, h.onSeedEnd)
	if err := h.frontier.SetProcessed(c.Request.Context(), w, rec); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "processed"})
}

// Abandon handles POST /workers/:workerID/abandon.
func (h *FrontierHandler) Abandon(c *gin.Context) {
	workerID := c.Param("workerID")
	var req schema.CompleteURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := toRecord(req.Docid, req.SeedDocid, req.ParentDocid, req.Priority, req.Depth, req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url: " + err.Error()})
		return
	}

	w := frontier.NewWorker(workerID, h.onSeedEnd)
	if err := h.frontier.Abandon(c.Request.Context(), w, rec); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "abandoned"})
}

// RemoveSeed handles DELETE /seeds/:seedDocid.
func (h *FrontierHandler) RemoveSeed(c *gin.Context) {
	seedDocid, err := strconv.ParseUint(c.Param("seedDocid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid seed docid"})
		return
	}

	removed, err := h.frontier.RemoveOffspring(c.Request.Context(), seedDocid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.publishSeedDone(seedDocid)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// Stats handles GET /stats.
func (h *FrontierHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, schema.StatsResponse{
		QueueSize:     h.frontier.QueueSize(),
		NumInProgress: h.frontier.NumInProgress(),
	})
}

// Validate handles GET /validate, running the Section 8 consistency
// checks on demand rather than only on a timer.
func (h *FrontierHandler) Validate(c *gin.Context) {
	err := h.frontier.Validate(c.Request.Context())
	if err == nil {
		c.JSON(http.StatusOK, schema.ValidateResponse{Valid: true})
		return
	}

	if verr, ok := err.(*frontier.ValidationError); ok {
		c.JSON(http.StatusOK, schema.ValidateResponse{Valid: false, Violations: verr.Violations})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h *FrontierHandler) onSeedEnd(seedDocid uint64) {
	h.publishSeedDone(seedDocid)
}

func (h *FrontierHandler) publishDispatch(rec frontier.URLRecord, workerID string) {
	if h.producer == nil {
		return
	}
	event := kafka.DispatchEvent{
		Docid: rec.Docid, SeedDocid: rec.SeedDocid, Host: rec.Host,
		URL: rec.URL, WorkerID: workerID, Timestamp: time.Now(),
	}
	publishJSON(h.producer, h.eventsTopic, rec.Host, event)
}

func (h *FrontierHandler) publishSeedDone(seedDocid uint64) {
	if h.producer == nil {
		return
	}
	event := kafka.SeedDoneEvent{SeedDocid: seedDocid, Timestamp: time.Now()}
	publishJSON(h.producer, h.eventsTopic, strconv.FormatUint(seedDocid, 10), event)
}

func publishJSON(p EventPublisher, topic, key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal event", "error", err)
		return
	}
	if err := p.SendMessage(topic, key, string(payload)); err != nil {
		slog.Error("failed to publish event", "topic", topic, "error", err)
	}
}
