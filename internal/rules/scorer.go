package rules

import (
	"log/slog"

	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/metrics"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/model"
)

// BaselineScore is the floor every event starts from. An event matching no
// rules is still a live event, never zero-risk.
const BaselineScore = 1

// Scorer evaluates the rule catalog against normalized events. Scoring is
// deterministic: identical event and snapshot always yield an identical
// result, which is what makes orchestrator retries safe.
type Scorer struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewScorer creates a new scorer.
func NewScorer(prometheusMetrics *metrics.Metrics, logger *slog.Logger) *Scorer {
	return &Scorer{
		logger:  logger,
		metrics: prometheusMetrics,
	}
}

// Score computes baseline + sum of weights of matched rules. Scores are
// unbounded above; saturation at the top band is the threshold table's job,
// not the scorer's.
func (s *Scorer) Score(event *model.NormalizedEvent, snapshot *Snapshot) model.ScoreResult {
	text := event.SearchText()

	total := BaselineScore
	matched := make([]string, 0, len(snapshot.Rules))

	for i := range snapshot.Rules {
		rule := &snapshot.Rules[i]
		if s.evaluateRule(rule, text) {
			total += rule.Spec.Weight
			matched = append(matched, rule.Metadata.ID)
		}
	}

	return model.ScoreResult{
		Total:          total,
		MatchedRuleIDs: matched,
	}
}

// evaluateRule runs one rule predicate. A predicate that panics must not
// abort the whole classification: the rule is treated as not matched and the
// failure is recorded for observability.
func (s *Scorer) evaluateRule(rule *Rule, text string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.logger.Warn("Rule predicate failed, treating as not matched",
				"rule_id", rule.Metadata.ID,
				"source_file", rule.SourceFile,
				"panic", r)
			if s.metrics != nil {
				s.metrics.IncRuleEvalFailures()
			}
		}
	}()

	if s.metrics != nil {
		s.metrics.IncRulesEvaluated()
	}

	return rule.matches(text)
}
