package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
	"github.com/kirillkom/verified-ingest/internal/core/ports"
	"github.com/kirillkom/verified-ingest/internal/observability/metrics"
)

const (
	actorHeader  = "X-Actor"
	defaultActor = "anonymous"

	maxInFlightRequests = 64
	backpressureWait    = 2 * time.Second
)

type Router struct {
	ingestor ports.DocumentIngestor
	reader   ports.VerifiedReader
	merger   ports.ChatterMerger
	docs     ports.DocumentStore

	serviceName string
	rateRPS     int
	rateBurst   int
	httpMetrics *metrics.HTTPServerMetrics
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	reader ports.VerifiedReader,
	merger ports.ChatterMerger,
	docs ports.DocumentStore,
	serviceName string,
	rateRPS, rateBurst int,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		ingestor:    ingestor,
		reader:      reader,
		merger:      merger,
		docs:        docs,
		serviceName: serviceName,
		rateRPS:     rateRPS,
		rateBurst:   rateBurst,
		httpMetrics: httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.ingestDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/chatter/merge", rt.mergeChatter)
	mux.HandleFunc("/v1/records", rt.queryRecords)
	mux.HandleFunc("/v1/chatter", rt.queryChatter)
	if rt.httpMetrics != nil {
		mux.Handle("/metrics", rt.httpMetrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, maxInFlightRequests, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.rateRPS, rt.rateBurst, rt.onRateLimited)
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware(rt.serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) onRateLimited(path string) {
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordRateLimited(rt.serviceName, path)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ingestDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	meta := ports.DocumentMeta{
		Ticker:   strings.TrimSpace(r.FormValue("ticker")),
		DocClass: domain.DocClass(strings.TrimSpace(r.FormValue("doc_class"))),
		Period:   strings.TrimSpace(r.FormValue("period")),
		Origin:   strings.TrimSpace(r.FormValue("origin")),
		AsOf:     strings.TrimSpace(r.FormValue("as_of")),
		Actor:    actorFrom(r),
	}

	receipt, err := rt.ingestor.Ingest(r.Context(), meta, fileHeader.Filename, file)
	if err != nil {
		rt.recordIngestOutcome(outcomeForError(err))
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if !receipt.IsNew {
		rt.recordIngestOutcome("duplicate")
		writeJSON(w, http.StatusOK, receipt)
		return
	}
	rt.recordIngestOutcome("registered")
	writeJSON(w, http.StatusAccepted, receipt)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) mergeChatter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Ticker  string               `json:"ticker"`
		Batches []domain.OriginBatch `json:"batches"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	actor := actorFrom(r)
	var summary *domain.MergeSummary
	var err error
	if len(req.Batches) > 0 {
		summary, err = rt.merger.Merge(r.Context(), actor, req.Batches)
	} else {
		if strings.TrimSpace(req.Ticker) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ticker or batches is required"})
			return
		}
		summary, err = rt.merger.MergeFromSources(r.Context(), actor, req.Ticker)
	}
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) queryRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	q := r.URL.Query()
	req := ports.QueryRequest{
		Actor:  actorFrom(r),
		Ticker: strings.TrimSpace(q.Get("ticker")),
		Class:  domain.RecordClass(strings.TrimSpace(q.Get("class"))),
		Table:  strings.TrimSpace(q.Get("table")),
		Period: strings.TrimSpace(q.Get("period")),
		Metric: strings.TrimSpace(q.Get("metric")),
	}
	rt.serveQuery(w, r, req)
}

func (rt *Router) queryChatter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	req := ports.QueryRequest{
		Actor:  actorFrom(r),
		Ticker: strings.TrimSpace(q.Get("ticker")),
		Class:  domain.RecordClassChatter,
		Limit:  limit,
	}
	rt.serveQuery(w, r, req)
}

func (rt *Router) serveQuery(w http.ResponseWriter, r *http.Request, req ports.QueryRequest) {
	result, err := rt.reader.Query(r.Context(), req)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordQuery(rt.serviceName, string(req.Class), string(result.Status), result.AgeDays)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) recordIngestOutcome(outcome string) {
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordIngestOutcome(rt.serviceName, outcome)
	}
}

func outcomeForError(err error) string {
	if domain.IsKind(err, domain.ErrValidation) {
		return "rejected"
	}
	return "errored"
}

func actorFrom(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get(actorHeader)); actor != "" {
		return actor
	}
	return defaultActor
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
