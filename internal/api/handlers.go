package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expiring-kv/internal/expiry"
	"expiring-kv/internal/health"
	"expiring-kv/internal/logs"
	"expiring-kv/internal/maps"
	"expiring-kv/internal/metrics"
)

const defaultLogTail = 100

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	maps       *maps.Registry
	metrics    *metrics.Registry
	logger     *logs.Logger
	analyzer   *health.Analyzer
	prometheus http.Handler
}

// NewHandler creates a new API handler.
func NewHandler(
	registry *maps.Registry,
	metricsRegistry *metrics.Registry,
	logger *logs.Logger,
) *Handler {
	return &Handler{
		maps:     registry,
		metrics:  metricsRegistry,
		logger:   logger.With("api"),
		analyzer: health.NewAnalyzer(metricsRegistry, logger),
		prometheus: promhttp.HandlerFor(
			metrics.NewPrometheusRegistry(metricsRegistry),
			promhttp.HandlerOpts{},
		),
	}
}

// mapPath splits "/maps/{map}/{op}/{key}".
func mapPath(path string) (name, op, key string, ok bool) {
	parts := strings.SplitN(strings.TrimPrefix(path, "/maps/"), "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

/* ---------------- PUT /maps/{map}/kv/{key} ---------------- */

// Absent durations inherit, 0 means eternal.
type putRequest struct {
	Value     *string `json:"value"`
	TTLms     *int64  `json:"ttl_ms,omitempty"`
	MaxIdleMs *int64  `json:"max_idle_ms,omitempty"`
}

func durationOf(ms *int64) expiry.Duration {
	if ms == nil {
		return expiry.Unset
	}
	return expiry.Of(*ms, time.Millisecond)
}

func (h *Handler) PutKey(w http.ResponseWriter, r *http.Request, name, key string) {
	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Value == nil {
		http.Error(w, "missing value", http.StatusBadRequest)
		return
	}

	h.maps.Map(name).PutWithMaxIdle(key, *req.Value, durationOf(req.TTLms), durationOf(req.MaxIdleMs))
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------- GET /maps/{map}/kv/{key} ---------------- */

func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request, name, key string) {
	st, ok := h.maps.Lookup(name)
	if !ok {
		http.Error(w, "map not found", http.StatusNotFound)
		return
	}

	value, ok := st.Get(key)
	if !ok {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"value": value,
	})
}

/* ---------------- HEAD /maps/{map}/kv/{key} ---------------- */

func (h *Handler) HeadKey(w http.ResponseWriter, r *http.Request, name, key string) {
	st, ok := h.maps.Lookup(name)
	if !ok || !st.ContainsKey(key) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

/* ---------------- DELETE /maps/{map}/kv/{key} ---------------- */

func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request, name, key string) {
	if st, ok := h.maps.Lookup(name); ok {
		st.Remove(key)
	}
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------- POST /maps/{map}/replace/{key} ---------------- */

type replaceRequest struct {
	Expected string `json:"expected"`
	Value    string `json:"value"`
}

func (h *Handler) ReplaceKey(w http.ResponseWriter, r *http.Request, name, key string) {
	var req replaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	replaced := false
	if st, ok := h.maps.Lookup(name); ok {
		replaced = st.Replace(key, req.Expected, req.Value)
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"replaced": replaced,
	})
}

/* ---------------- GET /maps/{map}/entries/{key} ---------------- */

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request, name, key string) {
	st, ok := h.maps.Lookup(name)
	if !ok {
		http.Error(w, "map not found", http.StatusNotFound)
		return
	}

	view, ok := st.EntryView(key)
	if !ok {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

/* ---------------- GET /admin/maps ---------------- */

func (h *Handler) ListMaps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.maps.Sizes())
}

// adminMapPath splits "/admin/maps/{map}" and "/admin/maps/{map}/{sub}".
func adminMapPath(path string) (name, sub string, ok bool) {
	rest := strings.TrimPrefix(path, "/admin/maps/")
	name, sub, _ = strings.Cut(rest, "/")
	if name == "" || strings.Contains(sub, "/") {
		return "", "", false
	}
	return name, sub, true
}

type mapInfo struct {
	Name         string          `json:"name"`
	Size         int             `json:"size"`
	NextDeadline expiry.Deadline `json:"next_deadline"`
}

/* ---------------- GET /admin/maps/{map} ---------------- */

func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request, name string) {
	st, ok := h.maps.Lookup(name)
	if !ok {
		http.Error(w, "map not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, mapInfo{
		Name:         name,
		Size:         st.Len(),
		NextDeadline: st.NextDeadline(),
	})
}

/* ---------------- DELETE /admin/maps/{map} ---------------- */

func (h *Handler) DropMap(w http.ResponseWriter, r *http.Request, name string) {
	if !h.maps.Drop(name) {
		http.Error(w, "map not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------- GET /admin/maps/{map}/keys ---------------- */

func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request, name string) {
	st, ok := h.maps.Lookup(name)
	if !ok {
		http.Error(w, "map not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st.List())
}

/* ---------------- GET /admin/logs ---------------- */

func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	n := defaultLogTail
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "n must be a non-negative integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, h.logger.GetLast(n))
}

/* ---------------- GET /metrics ---------------- */

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

/* ---------------- GET /metrics/prometheus ---------------- */

func (h *Handler) GetPrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	h.prometheus.ServeHTTP(w, r)
}

/* ---------------- GET /health ---------------- */

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analyzer.Analyze())
}
