// Package publish forwards verdicts to the response pipeline over NATS.
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/metrics"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/model"
)

// VerdictSubject is the NATS subject downstream automation subscribes to.
const VerdictSubject = "riskd.verdicts"

// VerdictPublisher publishes verdicts to NATS for the orchestration and
// notification collaborators. A nil connection disables publishing; the
// classification path never depends on the bus being up.
type VerdictPublisher struct {
	natsConn *nats.Conn
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewVerdictPublisher creates a new verdict publisher.
func NewVerdictPublisher(natsConn *nats.Conn, prometheusMetrics *metrics.Metrics, logger *slog.Logger) *VerdictPublisher {
	return &VerdictPublisher{
		natsConn: natsConn,
		metrics:  prometheusMetrics,
		logger:   logger,
	}
}

// Enabled reports whether a live NATS connection is configured.
func (p *VerdictPublisher) Enabled() bool {
	return p.natsConn != nil
}

// PublishVerdict publishes one verdict to the verdict subject with routing
// headers for downstream filtering.
func (p *VerdictPublisher) PublishVerdict(v *model.Verdict) error {
	if p.natsConn == nil || !p.natsConn.IsConnected() {
		return fmt.Errorf("NATS connection not available")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	headers := nats.Header{}
	headers.Set("x-verdict-id", v.ID)
	headers.Set("x-risk-level", string(v.RiskLevel))
	headers.Set("x-content-hash", v.ContentHash)
	headers.Set("x-timestamp", v.Timestamp)

	msg := &nats.Msg{
		Subject: VerdictSubject,
		Data:    data,
		Header:  headers,
	}

	if err := p.natsConn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish verdict: %w", err)
	}

	if p.metrics != nil {
		p.metrics.IncVerdictsPublished()
	}

	p.logger.Info("Published verdict",
		"verdict_id", v.ID,
		"risk_level", v.RiskLevel,
		"risk_score", v.RiskScore,
		"subject", VerdictSubject)

	return nil
}
