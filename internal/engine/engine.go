// Package engine implements the risk classification façade: validate, score,
// map, and stamp a verdict.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/metrics"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/model"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/rules"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/verdict"
)

// ClassifyRequest is the raw incident payload from the orchestration
// collaborator. Title is required and non-empty; description is required but
// may be empty. The remaining fields are passed through for audit only.
type ClassifyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SourceIP    string `json:"source_ip,omitempty"`
	Host        string `json:"host,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// ValidationError reports a malformed classification request. It is the only
// engine failure surfaced to the caller; everything else is either absorbed
// locally or prevents startup.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Engine is the decision façade. It holds only immutable configuration
// references and is safe for arbitrarily many concurrent classifications.
type Engine struct {
	catalog *rules.Loader
	scorer  *rules.Scorer
	table   *verdict.Table
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a decision engine over a loaded catalog and a validated
// threshold table.
func New(catalog *rules.Loader, scorer *rules.Scorer, table *verdict.Table, prometheusMetrics *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		scorer:  scorer,
		table:   table,
		logger:  logger,
		metrics: prometheusMetrics,
	}
}

// Classify validates the request, scores it against the active catalog
// snapshot, and maps the score to a verdict. Read/compute-only: no external
// state is touched, so the orchestrator may retry freely. Identical inputs
// yield identical verdicts apart from ID and timestamp; the content hash
// correlates them.
func (e *Engine) Classify(ctx context.Context, req *ClassifyRequest) (*model.Verdict, error) {
	if err := validate(req); err != nil {
		if e.metrics != nil {
			e.metrics.IncValidationFailures()
		}
		return nil, err
	}

	event := &model.NormalizedEvent{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		SourceIP:    req.SourceIP,
		Host:        req.Host,
		Priority:    req.Priority,
	}

	snapshot := e.catalog.GetSnapshot()
	result := e.scorer.Score(event, snapshot)
	band := e.table.Map(result.Total)

	v := &model.Verdict{
		ID:             uuid.New().String(),
		RiskLevel:      band.RiskLevel,
		RiskScore:      result.Total,
		ISOControl:     band.ISOControl,
		Recommendation: band.Recommendation,
		Status:         band.Status,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ContentHash:    ContentHash(event),
		MatchedRuleIDs: result.MatchedRuleIDs,
	}

	e.logger.Info("Classified event",
		"verdict_id", v.ID,
		"risk_level", v.RiskLevel,
		"risk_score", v.RiskScore,
		"matched_rules", len(v.MatchedRuleIDs),
		"content_hash", v.ContentHash,
		"catalog_version", snapshot.Version)

	if e.metrics != nil {
		e.metrics.IncClassification(string(v.RiskLevel))
	}

	return v, nil
}

// validate enforces the required request shape.
func validate(req *ClassifyRequest) error {
	if req == nil {
		return &ValidationError{Field: "body", Message: "request body is required"}
	}
	if strings.TrimSpace(req.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required and must be non-empty"}
	}
	return nil
}

// ContentHash returns the SHA-256 hex digest of the normalized input text,
// used to correlate repeated identical incidents across requests.
func ContentHash(event *model.NormalizedEvent) string {
	sum := sha256.Sum256([]byte(event.Title + "\n" + event.Description))
	return hex.EncodeToString(sum[:])
}
