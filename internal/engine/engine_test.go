package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/model"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/rules"
	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/verdict"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	loader := rules.NewLoader("", false, 1000, logger)
	_, err := loader.LoadSnapshot()
	require.NoError(t, err)

	table, err := verdict.LoadTable("", rules.BaselineScore, logger)
	require.NoError(t, err)

	scorer := rules.NewScorer(nil, logger)
	return New(loader, scorer, table, nil, logger)
}

func TestEngine_Classify_SSHBruteForce(t *testing.T) {
	eng := testEngine(t)

	v, err := eng.Classify(context.Background(), &ClassifyRequest{
		Title:       "Linux SSH Brute Force",
		Description: "Linux SSH Brute Force: 192.168.1.100 - count()=10",
	})
	require.NoError(t, err)

	assert.Equal(t, model.RiskHigh, v.RiskLevel)
	assert.Equal(t, 6, v.RiskScore)
	assert.Equal(t, "ISO 27001 A.16.1.5", v.ISOControl)
	assert.Equal(t, "critical", v.Status)
	assert.NotEmpty(t, v.Recommendation)
	assert.ElementsMatch(t, []string{"ssh-activity", "brute-force", "count-threshold-10"}, v.MatchedRuleIDs)
}

func TestEngine_Classify_AuthFailure(t *testing.T) {
	eng := testEngine(t)

	v, err := eng.Classify(context.Background(), &ClassifyRequest{
		Title:       "Generic Alert",
		Description: "authentication failure",
	})
	require.NoError(t, err)

	assert.Equal(t, model.RiskLow, v.RiskLevel)
	assert.Equal(t, 2, v.RiskScore)
}

func TestEngine_Classify_BaselineEvent(t *testing.T) {
	eng := testEngine(t)

	// Empty description and a generic title score the baseline and map to the
	// lowest band.
	v, err := eng.Classify(context.Background(), &ClassifyRequest{
		Title:       "Generic Alert",
		Description: "",
	})
	require.NoError(t, err)

	assert.Equal(t, model.RiskLow, v.RiskLevel)
	assert.Equal(t, rules.BaselineScore, v.RiskScore)
}

func TestEngine_Classify_ValidationError(t *testing.T) {
	eng := testEngine(t)

	tests := []struct {
		name string
		req  *ClassifyRequest
	}{
		{"empty title and description", &ClassifyRequest{Title: "", Description: ""}},
		{"whitespace title", &ClassifyRequest{Title: "   ", Description: "something"}},
		{"nil request", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Classify(context.Background(), tt.req)
			require.Error(t, err)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestEngine_Classify_EmptyDescriptionAllowed(t *testing.T) {
	eng := testEngine(t)

	v, err := eng.Classify(context.Background(), &ClassifyRequest{Title: "SSH probe"})
	require.NoError(t, err)
	assert.Equal(t, 3, v.RiskScore) // baseline + ssh
}

func TestEngine_Classify_Idempotent(t *testing.T) {
	eng := testEngine(t)

	req := &ClassifyRequest{
		Title:       "Linux SSH Brute Force",
		Description: "failed password for root - count()=25",
	}

	first, err := eng.Classify(context.Background(), req)
	require.NoError(t, err)

	second, err := eng.Classify(context.Background(), req)
	require.NoError(t, err)

	// Identical inputs yield identical verdicts apart from ID and timestamp
	assert.Equal(t, first.RiskLevel, second.RiskLevel)
	assert.Equal(t, first.RiskScore, second.RiskScore)
	assert.Equal(t, first.ISOControl, second.ISOControl)
	assert.Equal(t, first.Recommendation, second.Recommendation)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.MatchedRuleIDs, second.MatchedRuleIDs)
	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEngine_Classify_VerdictTimestamp(t *testing.T) {
	eng := testEngine(t)

	before := time.Now().UTC().Add(-time.Second)
	v, err := eng.Classify(context.Background(), &ClassifyRequest{Title: "Generic Alert"})
	require.NoError(t, err)

	ts, err := time.Parse(time.RFC3339, v.Timestamp)
	require.NoError(t, err)
	assert.True(t, ts.After(before))
	assert.Equal(t, time.UTC, ts.Location())
}

func TestContentHash_DiffersByInput(t *testing.T) {
	a := ContentHash(&model.NormalizedEvent{Title: "a", Description: "x"})
	b := ContentHash(&model.NormalizedEvent{Title: "b", Description: "x"})
	c := ContentHash(&model.NormalizedEvent{Title: "a", Description: "x"})

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
	assert.Len(t, a, 64)
}
