package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/model"
)

func builtinSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	loader := NewLoader("", false, 1000, testLogger())
	snapshot, err := loader.LoadSnapshot()
	require.NoError(t, err)
	return snapshot
}

func TestScorer_Score(t *testing.T) {
	snapshot := builtinSnapshot(t)
	scorer := NewScorer(nil, testLogger())

	tests := []struct {
		name          string
		title         string
		description   string
		expectedScore int
		expectedRules []string
	}{
		{
			name:          "ssh brute force with count",
			title:         "Linux SSH Brute Force",
			description:   "Linux SSH Brute Force: 192.168.1.100 - count()=10",
			expectedScore: 6, // baseline 1 + ssh 2 + brute force 2 + count 1
			expectedRules: []string{"ssh-activity", "brute-force", "count-threshold-10"},
		},
		{
			name:          "authentication failure only",
			title:         "Generic Alert",
			description:   "authentication failure",
			expectedScore: 2,
			expectedRules: []string{"auth-failure"},
		},
		{
			name:          "no matches stays at baseline",
			title:         "Generic Alert",
			description:   "",
			expectedScore: BaselineScore,
			expectedRules: []string{},
		},
		{
			name:          "case insensitive matching",
			title:         "SSH LOGIN",
			description:   "BRUTE FORCE detected",
			expectedScore: 5, // baseline 1 + ssh 2 + brute force 2
			expectedRules: []string{"ssh-activity", "brute-force"},
		},
		{
			name:          "high volume brute force",
			title:         "SSH Brute Force storm",
			description:   "repeated failed password from 10.0.0.7 - count()=120",
			expectedScore: 9, // 1 + ssh 2 + brute force 2 + count10 1 + count50 2 + auth failure 1
			expectedRules: []string{"ssh-activity", "brute-force", "count-threshold-10", "count-threshold-50", "auth-failure"},
		},
		{
			name:          "privileged account",
			title:         "Sudo misuse",
			description:   "sudo invoked by unexpected account",
			expectedScore: 2,
			expectedRules: []string{"privileged-account"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &model.NormalizedEvent{Title: tt.title, Description: tt.description}
			result := scorer.Score(event, snapshot)

			assert.Equal(t, tt.expectedScore, result.Total)
			assert.Equal(t, tt.expectedRules, result.MatchedRuleIDs)
		})
	}
}

func TestScorer_ScoreIsBaselinePlusWeights(t *testing.T) {
	snapshot := builtinSnapshot(t)
	scorer := NewScorer(nil, testLogger())

	event := &model.NormalizedEvent{
		Title:       "Linux SSH Brute Force",
		Description: "failed password for root - count()=15",
	}
	result := scorer.Score(event, snapshot)

	weights := make(map[string]int)
	for _, rule := range snapshot.Rules {
		weights[rule.Metadata.ID] = rule.Spec.Weight
	}

	sum := BaselineScore
	for _, id := range result.MatchedRuleIDs {
		sum += weights[id]
	}
	assert.Equal(t, sum, result.Total)
	assert.GreaterOrEqual(t, result.Total, BaselineScore)
}

func TestScorer_Deterministic(t *testing.T) {
	snapshot := builtinSnapshot(t)
	scorer := NewScorer(nil, testLogger())

	event := &model.NormalizedEvent{
		Title:       "Linux SSH Brute Force",
		Description: "Linux SSH Brute Force: 192.168.1.100 - count()=10",
	}

	first := scorer.Score(event, snapshot)
	for i := 0; i < 50; i++ {
		again := scorer.Score(event, snapshot)
		assert.Equal(t, first.Total, again.Total)
		assert.Equal(t, first.MatchedRuleIDs, again.MatchedRuleIDs)
	}
}

func TestScorer_MonotonicUnderAddedRule(t *testing.T) {
	scorer := NewScorer(nil, testLogger())

	base := Rule{
		Metadata: RuleMetadata{ID: "base", Name: "Base"},
		Spec: RuleSpec{
			Enabled: true,
			Weight:  2,
			Match:   MatchClause{Contains: []string{"ssh"}},
		},
	}
	extra := Rule{
		Metadata: RuleMetadata{ID: "extra", Name: "Extra"},
		Spec: RuleSpec{
			Enabled: true,
			Weight:  3,
			Match:   MatchClause{Contains: []string{"brute"}},
		},
	}
	require.NoError(t, base.ValidateAndCompile())
	require.NoError(t, extra.ValidateAndCompile())

	event := &model.NormalizedEvent{Title: "SSH brute force", Description: ""}

	without := scorer.Score(event, &Snapshot{Rules: []Rule{base}})
	with := scorer.Score(event, &Snapshot{Rules: []Rule{base, extra}})

	// Adding a matching rule never decreases the score
	assert.GreaterOrEqual(t, with.Total, without.Total)
	assert.Equal(t, without.Total+3, with.Total)
}

func TestMatchClause_Semantics(t *testing.T) {
	tests := []struct {
		name    string
		match   MatchClause
		text    string
		matched bool
	}{
		{"contains any - first", MatchClause{Contains: []string{"ssh", "telnet"}}, "ssh session opened", true},
		{"contains any - second", MatchClause{Contains: []string{"ssh", "telnet"}}, "telnet session opened", true},
		{"contains any - none", MatchClause{Contains: []string{"ssh", "telnet"}}, "http request", false},
		{"contains all - both", MatchClause{ContainsAll: []string{"failed", "password"}}, "failed password for root", true},
		{"contains all - partial", MatchClause{ContainsAll: []string{"failed", "password"}}, "failed login", false},
		{"regex", MatchClause{Regex: `\d+\.\d+\.\d+\.\d+`}, "source 192.168.1.100", true},
		{"regex no match", MatchClause{Regex: `\d+\.\d+\.\d+\.\d+`}, "no address here", false},
		{"count at least - met", MatchClause{CountAtLeast: 10}, "alert count()=12", true},
		{"count at least - exact", MatchClause{CountAtLeast: 10}, "alert count()=10", true},
		{"count at least - below", MatchClause{CountAtLeast: 10}, "alert count()=9", false},
		{"count at least - absent", MatchClause{CountAtLeast: 10}, "alert without counter", false},
		{"count picks max token", MatchClause{CountAtLeast: 10}, "count()=2 then count()=40", true},
		{"combined clauses AND", MatchClause{Contains: []string{"ssh"}, CountAtLeast: 10}, "ssh count()=5", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := Rule{
				Metadata: RuleMetadata{ID: "probe", Name: "Probe"},
				Spec:     RuleSpec{Enabled: true, Weight: 1, Match: tt.match},
			}
			require.NoError(t, rule.ValidateAndCompile())
			assert.Equal(t, tt.matched, rule.matches(tt.text))
		})
	}
}
