package model

import (
	"strings"
	"time"
)

// RiskLevel is the ordered risk classification emitted by the verdict mapper.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// riskRank orders levels from least to most severe. Unknown levels rank below LOW.
var riskRank = map[RiskLevel]int{
	RiskLow:    1,
	RiskMedium: 2,
	RiskHigh:   3,
}

// Valid reports whether the level is one of the known risk levels.
func (r RiskLevel) Valid() bool {
	_, ok := riskRank[r]
	return ok
}

// Rank returns the severity order of the level (LOW=1). Unknown levels return 0.
func (r RiskLevel) Rank() int {
	return riskRank[r]
}

// NormalizedEvent is a normalized incident description from the ingest pipeline.
// It is constructed once per classification request and consumed read-only by
// the scorer; structured fields beyond title/description are preserved opaquely
// for audit and never interpreted by scoring.
type NormalizedEvent struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	SourceIP    string            `json:"source_ip,omitempty"`
	Host        string            `json:"host,omitempty"`
	Timestamp   time.Time         `json:"timestamp,omitempty"`
	Priority    string            `json:"priority,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
}

// SearchText returns the lower-cased concatenation of title and description.
// All rule matching is case-insensitive over this text.
func (e *NormalizedEvent) SearchText() string {
	return strings.ToLower(e.Title + " " + e.Description)
}

// ScoreResult is the output of evaluating the rule catalog against one event.
type ScoreResult struct {
	// Total is baseline + sum of weights of matched rules, never below baseline.
	Total int `json:"total"`
	// MatchedRuleIDs lists the rules that fired, in catalog order.
	MatchedRuleIDs []string `json:"matched_rule_ids"`
}

// Verdict is the classification result returned to the orchestration collaborator.
type Verdict struct {
	ID             string    `json:"id"`
	RiskLevel      RiskLevel `json:"risk_level"`
	RiskScore      int       `json:"risk_score"`
	ISOControl     string    `json:"iso_control"`
	Recommendation string    `json:"recommendation"`
	Status         string    `json:"status"`
	Timestamp      string    `json:"timestamp"` // ISO-8601 UTC, set at evaluation time
	ContentHash    string    `json:"content_hash"`
	MatchedRuleIDs []string  `json:"matched_rule_ids,omitempty"`
}
