package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/engine"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/metrics"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/model"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/publish"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/rules"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/store"
)

// maxBodySize limits classification payloads.
const maxBodySize = 1024 * 1024 // 1MB

// HTTPAPI provides the HTTP boundary for the risk engine. It owns
// transport-level concerns only; all decision logic lives in the engine.
type HTTPAPI struct {
	engine     *engine.Engine
	store      *store.MemoryStore
	ruleLoader *rules.Loader
	publisher  *publish.VerdictPublisher
	metrics    *metrics.Metrics
	natsConn   *nats.Conn
	logger     *slog.Logger
}

// NewHTTPAPI creates a new HTTP API instance.
func NewHTTPAPI(eng *engine.Engine, verdictStore *store.MemoryStore, ruleLoader *rules.Loader, publisher *publish.VerdictPublisher, prometheusMetrics *metrics.Metrics, natsConn *nats.Conn, logger *slog.Logger) *HTTPAPI {
	return &HTTPAPI{
		engine:     eng,
		store:      verdictStore,
		ruleLoader: ruleLoader,
		publisher:  publisher,
		metrics:    prometheusMetrics,
		natsConn:   natsConn,
		logger:     logger,
	}
}

// SetupRoutes configures HTTP routes.
func (api *HTTPAPI) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/classify", api.handleClassify)
	mux.HandleFunc("/verdicts", api.handleVerdicts)
	mux.HandleFunc("/verdicts/reset", api.handleResetVerdicts)
	mux.HandleFunc("/rules", api.handleRules)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", api.handleHealth)
	mux.HandleFunc("/readyz", api.handleReady)
}

// handleClassify handles POST /classify
func (api *HTTPAPI) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST is supported")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	var req engine.ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.writeError(w, http.StatusBadRequest, "malformed_body", "Failed to parse request body as JSON")
		return
	}

	v, err := api.engine.Classify(r.Context(), &req)
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			api.writeError(w, http.StatusBadRequest, "validation_error", verr.Error())
			return
		}
		api.logger.Error("Classification failed", "error", err)
		api.writeError(w, http.StatusInternalServerError, "internal_error", "Classification failed")
		return
	}

	// Audit trail and bus publishing are observability sinks; neither may
	// fail the request once a verdict exists.
	if api.store != nil {
		api.store.AddVerdict(v)
		if api.metrics != nil {
			if total, ok := api.store.GetStats()["total_verdicts"].(int); ok {
				api.metrics.SetVerdictsInStore(float64(total))
			}
		}
	}
	if api.publisher != nil && api.publisher.Enabled() {
		if err := api.publisher.PublishVerdict(v); err != nil {
			api.logger.Warn("Failed to publish verdict", "verdict_id", v.ID, "error", err)
		}
	}

	api.writeJSON(w, http.StatusOK, v)
}

// handleVerdicts handles GET /verdicts with optional query parameters.
func (api *HTTPAPI) handleVerdicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET is supported")
		return
	}

	var verdicts []*model.Verdict

	riskLevel := r.URL.Query().Get("risk_level")
	limitStr := r.URL.Query().Get("limit")

	if riskLevel != "" {
		level := model.RiskLevel(riskLevel)
		if !level.Valid() {
			api.writeError(w, http.StatusBadRequest, "validation_error", "Unknown risk_level "+riskLevel)
			return
		}
		verdicts = api.store.GetVerdictsByRiskLevel(level)
	} else {
		verdicts = api.store.GetVerdicts()
	}

	if limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(verdicts) {
			verdicts = verdicts[len(verdicts)-limit:]
		}
	}

	api.writeJSON(w, http.StatusOK, map[string]interface{}{
		"verdicts":  verdicts,
		"count":     len(verdicts),
		"timestamp": time.Now().UTC(),
	})
}

// handleResetVerdicts handles POST /verdicts/reset
func (api *HTTPAPI) handleResetVerdicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST is supported")
		return
	}

	api.store.ClearVerdicts()
	if api.metrics != nil {
		api.metrics.SetVerdictsInStore(0)
	}

	api.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Verdicts cleared successfully",
		"timestamp": time.Now().UTC(),
	})
}

// handleRules handles GET /rules, a read-only summary of the active catalog.
func (api *HTTPAPI) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET is supported")
		return
	}

	snapshot := api.ruleLoader.GetSnapshot()

	type ruleSummary struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Weight      int    `json:"weight"`
		Description string `json:"description"`
		SourceFile  string `json:"source_file"`
	}

	summaries := make([]ruleSummary, 0, len(snapshot.Rules))
	for _, rule := range snapshot.Rules {
		summaries = append(summaries, ruleSummary{
			ID:          rule.Metadata.ID,
			Name:        rule.Metadata.Name,
			Weight:      rule.Spec.Weight,
			Description: rule.Spec.Description,
			SourceFile:  rule.SourceFile,
		})
	}

	if api.metrics != nil {
		api.metrics.SetRulesLoaded(float64(len(snapshot.Rules)))
	}

	api.writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":   summaries,
		"count":   len(summaries),
		"version": snapshot.Version,
	})
}

// handleHealth handles GET /healthz. Liveness only: never blocks on engine
// internals or the message bus.
func (api *HTTPAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET is supported")
		return
	}

	api.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// handleReady handles GET /readyz
func (api *HTTPAPI) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET is supported")
		return
	}

	snapshot := api.ruleLoader.GetSnapshot()
	rulesLoaded := len(snapshot.Rules) > 0

	// NATS only gates readiness when publishing is configured.
	natsOK := true
	natsConnected := false
	if api.natsConn != nil {
		natsConnected = api.natsConn.IsConnected()
		natsOK = natsConnected
	}
	if api.metrics != nil {
		api.metrics.SetNatsConnected(natsConnected)
	}

	ready := rulesLoaded && natsOK
	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	api.writeJSON(w, statusCode, map[string]interface{}{
		"status":          status,
		"timestamp":       time.Now().UTC(),
		"rules_loaded":    rulesLoaded,
		"rules_count":     len(snapshot.Rules),
		"catalog_version": snapshot.Version,
		"nats_connected":  natsConnected,
	})
}

// writeJSON writes a JSON response with the given status code.
func (api *HTTPAPI) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		api.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError writes a structured error body with a machine-readable code.
func (api *HTTPAPI) writeError(w http.ResponseWriter, statusCode int, code, message string) {
	api.writeJSON(w, statusCode, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"timestamp": time.Now().UTC(),
	})
}
