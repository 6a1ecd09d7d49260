// Package verdict maps risk scores to governance verdicts through a validated
// threshold table.
package verdict

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/model"
)

// Band is one contiguous segment of the score axis. A band owns every score
// from MinScore up to the next band's MinScore (exclusive); the top band is
// unbounded above.
type Band struct {
	MinScore       int             `yaml:"min_score" json:"min_score"`
	RiskLevel      model.RiskLevel `yaml:"risk_level" json:"risk_level"`
	ISOControl     string          `yaml:"iso_control" json:"iso_control"`
	Recommendation string          `yaml:"recommendation" json:"recommendation"`
	Status         string          `yaml:"status" json:"status"`
}

// Table is an ordered, gapless partition of the score axis from the baseline
// upward. Tables are immutable after construction; mapping is a pure lookup
// that cannot fail for any score at or above the baseline.
type Table struct {
	bands []Band // sorted ascending by MinScore
}

// ConfigurationError represents an invalid threshold table. Fatal at load
// time: the process must not serve requests with a gapped or overlapping
// table.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Field + ": " + e.Message
}

// NewTable validates the bands and builds a threshold table. The lowest band
// must start exactly at the baseline so every achievable score maps to a band.
func NewTable(bands []Band, baseline int) (*Table, error) {
	if len(bands) == 0 {
		return nil, &ConfigurationError{Field: "bands", Message: "threshold table is empty"}
	}

	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinScore < sorted[j].MinScore
	})

	if sorted[0].MinScore != baseline {
		return nil, &ConfigurationError{
			Field:   "bands[0].min_score",
			Message: fmt.Sprintf("lowest band must start at the baseline score %d, got %d", baseline, sorted[0].MinScore),
		}
	}

	for i, band := range sorted {
		if !band.RiskLevel.Valid() {
			return nil, &ConfigurationError{
				Field:   fmt.Sprintf("bands[%d].risk_level", i),
				Message: fmt.Sprintf("unknown risk level %q", band.RiskLevel),
			}
		}
		if band.ISOControl == "" {
			return nil, &ConfigurationError{
				Field:   fmt.Sprintf("bands[%d].iso_control", i),
				Message: "control reference is required",
			}
		}
		if i > 0 {
			prev := sorted[i-1]
			if band.MinScore == prev.MinScore {
				return nil, &ConfigurationError{
					Field:   fmt.Sprintf("bands[%d].min_score", i),
					Message: fmt.Sprintf("overlapping bands at score %d", band.MinScore),
				}
			}
			if band.RiskLevel.Rank() <= prev.RiskLevel.Rank() {
				return nil, &ConfigurationError{
					Field:   fmt.Sprintf("bands[%d].risk_level", i),
					Message: fmt.Sprintf("risk level %s does not increase over previous band %s", band.RiskLevel, prev.RiskLevel),
				}
			}
		}
	}

	return &Table{bands: sorted}, nil
}

// Map returns the band with the greatest MinScore that is <= score. Scores
// below the baseline clamp to the lowest band; validation guarantees every
// score at or above the baseline has exactly one owner.
func (t *Table) Map(score int) Band {
	selected := t.bands[0]
	for _, band := range t.bands[1:] {
		if band.MinScore > score {
			break
		}
		selected = band
	}
	return selected
}

// Bands returns a copy of the validated bands in ascending order.
func (t *Table) Bands() []Band {
	out := make([]Band, len(t.bands))
	copy(out, t.bands)
	return out
}

// DefaultBands is the platform's default threshold table: >=5 HIGH, >=3
// MEDIUM, baseline LOW, with ISO 27001 Annex A incident-management controls.
func DefaultBands(baseline int) []Band {
	return []Band{
		{
			MinScore:       baseline,
			RiskLevel:      model.RiskLow,
			ISOControl:     "ISO 27001 A.12.4.1",
			Recommendation: "Log the event and continue monitoring; no immediate action required.",
			Status:         "info",
		},
		{
			MinScore:       3,
			RiskLevel:      model.RiskMedium,
			ISOControl:     "ISO 27001 A.16.1.4",
			Recommendation: "Notify the on-call analyst and review related events from the same source.",
			Status:         "warning",
		},
		{
			MinScore:       5,
			RiskLevel:      model.RiskHigh,
			ISOControl:     "ISO 27001 A.16.1.5",
			Recommendation: "Isolate the affected host and initiate the incident response procedure.",
			Status:         "critical",
		},
	}
}

// thresholdFile is the on-disk shape of a threshold table override.
type thresholdFile struct {
	Bands []Band `yaml:"bands"`
}

// LoadTable builds the threshold table from a YAML file, or from the built-in
// defaults when path is empty. Any validation failure is a fatal
// configuration error.
func LoadTable(path string, baseline int, logger *slog.Logger) (*Table, error) {
	if path == "" {
		logger.Info("Using built-in threshold table")
		return NewTable(DefaultBands(baseline), baseline)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read threshold table %s: %w", path, err)
	}

	var file thresholdFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse threshold table %s: %w", path, err)
	}

	table, err := NewTable(file.Bands, baseline)
	if err != nil {
		return nil, fmt.Errorf("invalid threshold table %s: %w", path, err)
	}

	logger.Info("Threshold table loaded", "path", path, "bands", len(file.Bands))
	return table, nil
}
