package rules

import (
	"regexp"
	"strconv"
	"strings"
)

// MatchClause defines when a scoring rule fires. Clauses combine with AND:
// every populated clause must hold against the event's lower-cased search text.
type MatchClause struct {
	// Contains fires when ANY of the substrings appears in the text.
	Contains []string `yaml:"contains,omitempty" json:"contains,omitempty"`
	// ContainsAll fires only when ALL substrings appear in the text.
	ContainsAll []string `yaml:"contains_all,omitempty" json:"contains_all,omitempty"`
	// Regex fires when the pattern matches the text. Compiled at load time.
	Regex string `yaml:"regex,omitempty" json:"regex,omitempty"`
	// CountAtLeast fires when the text carries a count()=N token with N >= this value.
	CountAtLeast int `yaml:"count_at_least,omitempty" json:"count_at_least,omitempty"`

	re *regexp.Regexp `yaml:"-" json:"-"`
}

// RuleMetadata contains identifying metadata about a scoring rule.
type RuleMetadata struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

// RuleSpec contains the scoring rule specification.
type RuleSpec struct {
	Enabled     bool        `yaml:"enabled" json:"enabled"`
	Weight      int         `yaml:"weight" json:"weight"`
	Description string      `yaml:"description" json:"description"`
	Match       MatchClause `yaml:"match" json:"match"`
}

// Rule is one entry of the scoring rule catalog. Rules are immutable after
// loading; their contributions are additive and order-insensitive.
type Rule struct {
	APIVersion string       `yaml:"apiVersion" json:"apiVersion"`
	Kind       string       `yaml:"kind" json:"kind"`
	Metadata   RuleMetadata `yaml:"metadata" json:"metadata"`
	Spec       RuleSpec     `yaml:"spec" json:"spec"`
	SourceFile string       `yaml:"-" json:"source_file,omitempty"`
}

// Snapshot is an immutable view of the loaded catalog. Snapshots are swapped
// atomically on reload; a snapshot handed to a request never changes.
type Snapshot struct {
	Rules   []Rule
	Version int64
}

// countToken extracts count()=N occurrences from normalized log text.
var countToken = regexp.MustCompile(`count\(\)\s*=\s*(\d+)`)

// ValidateAndCompile checks the rule and compiles its regex clause.
// A rule must carry a stable ID, a non-negative weight, and at least one
// match clause.
func (r *Rule) ValidateAndCompile() error {
	r.Metadata.ID = strings.TrimSpace(r.Metadata.ID)
	r.Metadata.Name = strings.TrimSpace(r.Metadata.Name)

	if r.Metadata.ID == "" {
		return &ConfigurationError{Field: "metadata.id", Message: "rule ID is required"}
	}
	if r.Metadata.Name == "" {
		return &ConfigurationError{Field: "metadata.name", Message: "rule name is required"}
	}
	if r.Spec.Weight < 0 {
		return &ConfigurationError{Field: "spec.weight", Message: "weight must be non-negative"}
	}

	m := &r.Spec.Match
	if len(m.Contains) == 0 && len(m.ContainsAll) == 0 && m.Regex == "" && m.CountAtLeast <= 0 {
		return &ConfigurationError{Field: "spec.match", Message: "at least one match clause is required"}
	}
	if m.CountAtLeast < 0 {
		return &ConfigurationError{Field: "spec.match.count_at_least", Message: "count threshold must be positive"}
	}

	if m.Regex != "" {
		re, err := regexp.Compile(m.Regex)
		if err != nil {
			return &ConfigurationError{Field: "spec.match.regex", Message: "invalid pattern: " + err.Error()}
		}
		m.re = re
	}

	return nil
}

// IsEnabled checks if the rule is enabled.
func (r *Rule) IsEnabled() bool {
	return r.Spec.Enabled
}

// matches evaluates the rule's match clause against lower-cased search text.
// Pure and side-effect free; the caller guards against predicate panics.
func (r *Rule) matches(text string) bool {
	m := &r.Spec.Match

	if len(m.Contains) > 0 {
		any := false
		for _, s := range m.Contains {
			if strings.Contains(text, strings.ToLower(s)) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}

	for _, s := range m.ContainsAll {
		if !strings.Contains(text, strings.ToLower(s)) {
			return false
		}
	}

	if m.re != nil && !m.re.MatchString(text) {
		return false
	}

	if m.CountAtLeast > 0 && maxCount(text) < m.CountAtLeast {
		return false
	}

	return true
}

// maxCount returns the largest count()=N token found in the text, or 0.
func maxCount(text string) int {
	max := 0
	for _, sub := range countToken.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(sub[1]); err == nil && n > max {
			max = n
		}
	}
	return max
}

// ConfigurationError represents an invalid catalog or rule definition.
// Configuration errors are fatal at startup; a reload that fails keeps the
// previous snapshot.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Field + ": " + e.Message
}
