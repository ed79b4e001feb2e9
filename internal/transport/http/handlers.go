package httptransport

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"talentstream/internal/audit"
	"talentstream/internal/auth"
	"talentstream/internal/auth/jwks"
	"talentstream/internal/counters"
	"talentstream/internal/platform/metrics"
	platformredis "talentstream/internal/platform/redis"
	"talentstream/internal/stream"
	dErrors "talentstream/pkg/domain-errors"
	"talentstream/pkg/platform/httputil"
)

// Handler delegates to domain services; no business logic lives here.
type Handler struct {
	streams  *stream.Service
	audit    *audit.Logger
	store    audit.Store
	counters *counters.Aggregator
	metrics  *metrics.Metrics
	keyCache *jwks.Cache
	redis    *platformredis.Client
	db       *sql.DB
	logger   *slog.Logger
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithStore enables the paginated audit-log listing.
func WithStore(store audit.Store) HandlerOption {
	return func(h *Handler) { h.store = store }
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithKeyCache surfaces JWKS state on the health endpoint.
func WithKeyCache(cache *jwks.Cache) HandlerOption {
	return func(h *Handler) { h.keyCache = cache }
}

// WithRedis surfaces Redis readiness on the health endpoint.
func WithRedis(client *platformredis.Client) HandlerOption {
	return func(h *Handler) { h.redis = client }
}

// WithDB surfaces database readiness on the health endpoint.
func WithDB(db *sql.DB) HandlerOption {
	return func(h *Handler) { h.db = db }
}

// NewHandler constructs the HTTP handler set.
func NewHandler(streams *stream.Service, auditLogger *audit.Logger, agg *counters.Aggregator, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		streams:  streams,
		audit:    auditLogger,
		counters: agg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// flushSink adapts a streaming ResponseWriter to the session's Sink.
type flushSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s flushSink) Send(frame []byte) error {
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// HandleStream opens an audit stream session. Authentication and admission
// failures surface as a rejection before any frame is written; mid-stream
// failures end the stream silently.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	sess, err := h.streams.Open(r.Context(), auth.BearerToken(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer sess.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	_ = sess.Run(r.Context(), flushSink{w: w, flusher: flusher})
}

// ingestRequest is the POST /events body.
type ingestRequest struct {
	EventType string         `json:"event_type"`
	Actor     string         `json:"actor"`
	Target    string         `json:"target"`
	Metadata  map[string]any `json:"metadata"`
}

// HandleIngest accepts an audit event from a collaborator service.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.EventType == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "event_type is required"))
		return
	}
	if req.Actor == "" {
		if claims := auth.ClaimsFrom(r.Context()); claims != nil {
			req.Actor = claims.Subject
		}
	}

	event := h.audit.Log(r.Context(), req.EventType, req.Actor, req.Target, req.Metadata)
	if h.metrics != nil {
		h.metrics.EventsPublished.Inc()
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"id": event.ID.String()})
}

// HandleAuditLogs serves the paginated audit trail.
func (h *Handler) HandleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "audit storage not configured"))
		return
	}

	limit, err := queryInt(r, "limit", 50)
	if err != nil || limit < 1 || limit > 1000 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 1000"))
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "offset must be non-negative"))
		return
	}

	items, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit log listing failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit logs"))
		return
	}
	if items == nil {
		items = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

// HandleCounters serves the aggregator snapshot.
func (h *Handler) HandleCounters(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.counters.Snapshot(r.Context()))
}

// HandleHealth reports component readiness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	jwksStatus := map[string]any{"configured": h.keyCache != nil}
	if h.keyCache != nil {
		status := h.keyCache.Status()
		jwksStatus["cached_keys"] = status.CachedKeys
		jwksStatus["last_refresh"] = status.LastRefresh
		jwksStatus["cache_ttl"] = status.CacheTTL
		jwksStatus["ok"] = len(status.CachedKeys) > 0
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"jwks":     jwksStatus,
		"database": readiness(r.Context(), h.db != nil, h.pingDB),
		"redis":    readiness(r.Context(), h.redis != nil, h.pingRedis),
	})
}

func (h *Handler) pingDB(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

func (h *Handler) pingRedis(ctx context.Context) error {
	return h.redis.Health(ctx)
}

func readiness(ctx context.Context, configured bool, ping func(context.Context) error) map[string]any {
	out := map[string]any{"configured": configured, "ready": false}
	if configured && ping(ctx) == nil {
		out["ready"] = true
	}
	return out
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
