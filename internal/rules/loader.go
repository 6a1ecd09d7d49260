package rules

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

const builtinCatalogFile = "defaults/default_rules.yaml"

// Loader loads and manages the scoring rule catalog. The catalog is read from
// a rules directory when one is configured, otherwise from the embedded
// built-in catalog. Loaded snapshots are immutable and swapped atomically.
type Loader struct {
	rulesDir   string
	hotReload  bool
	debounceMs int
	logger     *slog.Logger

	mu       sync.RWMutex
	snapshot *Snapshot
	watchers []chan struct{}
}

// NewLoader creates a new catalog loader. An empty rulesDir selects the
// embedded built-in catalog.
func NewLoader(rulesDir string, hotReload bool, debounceMs int, logger *slog.Logger) *Loader {
	return &Loader{
		rulesDir:   rulesDir,
		hotReload:  hotReload,
		debounceMs: debounceMs,
		logger:     logger,
	}
}

// LoadSnapshot loads the full catalog and swaps it in atomically. Unlike a
// relaxed log-collection pipeline, a scoring catalog must not silently drop
// rules: any malformed rule or duplicate ID fails the whole load. On reload
// failure the previous snapshot stays active.
func (l *Loader) LoadSnapshot() (*Snapshot, error) {
	var (
		loaded []Rule
		err    error
	)

	if l.rulesDir == "" {
		loaded, err = l.loadBuiltinCatalog()
	} else if _, statErr := os.Stat(l.rulesDir); os.IsNotExist(statErr) {
		l.logger.Info("Rules directory not found, using built-in catalog", "rules_dir", l.rulesDir)
		loaded, err = l.loadBuiltinCatalog()
	} else {
		loaded, err = l.loadCatalogFromDir()
	}
	if err != nil {
		return nil, err
	}

	var enabled []Rule
	seen := make(map[string]string) // rule ID -> source file
	for _, rule := range loaded {
		if err := rule.ValidateAndCompile(); err != nil {
			return nil, fmt.Errorf("rule %q (%s): %w", rule.Metadata.ID, rule.SourceFile, err)
		}
		if prev, exists := seen[rule.Metadata.ID]; exists {
			return nil, &ConfigurationError{
				Field:   "metadata.id",
				Message: fmt.Sprintf("duplicate rule ID %q (in %s and %s)", rule.Metadata.ID, prev, rule.SourceFile),
			}
		}
		seen[rule.Metadata.ID] = rule.SourceFile

		if !rule.IsEnabled() {
			l.logger.Debug("Skipping disabled rule", "rule_id", rule.Metadata.ID, "file", rule.SourceFile)
			continue
		}
		enabled = append(enabled, rule)
	}

	snapshot := &Snapshot{
		Rules:   enabled,
		Version: time.Now().UnixNano(),
	}

	l.logger.Info("Rule catalog loaded",
		"total_rules", len(loaded),
		"enabled_rules", len(enabled),
		"version", snapshot.Version)

	l.mu.Lock()
	l.snapshot = snapshot
	l.mu.Unlock()

	l.notifyWatchers()

	return snapshot, nil
}

// GetSnapshot returns the current catalog snapshot. The returned snapshot is
// immutable; requests in flight keep scoring against the snapshot they started
// with even if a reload lands mid-request.
func (l *Loader) GetSnapshot() *Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.snapshot == nil {
		return &Snapshot{Rules: []Rule{}, Version: 0}
	}
	return l.snapshot
}

// WatchForChanges starts watching the rules directory for changes when hot
// reload is enabled.
func (l *Loader) WatchForChanges() error {
	if !l.hotReload || l.rulesDir == "" {
		l.logger.Info("Hot reload disabled")
		return nil
	}

	l.logger.Info("Starting rule file watcher", "rules_dir", l.rulesDir)

	reloadChan := make(chan struct{}, 1)
	go l.watchFiles(reloadChan)
	go l.debouncedReload(reloadChan)

	return nil
}

// Subscribe returns a channel that receives a notification whenever a new
// snapshot is swapped in.
func (l *Loader) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)

	l.mu.Lock()
	l.watchers = append(l.watchers, ch)
	l.mu.Unlock()

	return ch
}

// loadBuiltinCatalog loads the embedded default rule catalog.
func (l *Loader) loadBuiltinCatalog() ([]Rule, error) {
	data, err := defaultsFS.ReadFile(builtinCatalogFile)
	if err != nil {
		return nil, fmt.Errorf("read builtin catalog (%s): %w", builtinCatalogFile, err)
	}

	rules, err := parseRules(data)
	if err != nil {
		return nil, fmt.Errorf("parse builtin catalog: %w", err)
	}
	for i := range rules {
		rules[i].SourceFile = "builtin:" + builtinCatalogFile
	}
	return rules, nil
}

// loadCatalogFromDir loads every rule file from the rules directory, sorted by
// filename. Rule order within a file is preserved for audit output.
func (l *Loader) loadCatalogFromDir() ([]Rule, error) {
	files, err := l.readRuleFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to read rule files: %w", err)
	}
	if len(files) == 0 {
		return nil, &ConfigurationError{Field: "rules_dir", Message: "no rule files found in " + l.rulesDir}
	}

	var all []Rule
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}

		rules, err := parseRules(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}

		for i := range rules {
			rules[i].SourceFile = file
		}
		all = append(all, rules...)

		l.logger.Debug("Loaded rules from file", "file", file, "count", len(rules))
	}

	return all, nil
}

// parseRules parses a YAML document holding either a single rule or a list.
func parseRules(data []byte) ([]Rule, error) {
	var single Rule
	if err := yaml.Unmarshal(data, &single); err == nil && single.Metadata.ID != "" {
		return []Rule{single}, nil
	}

	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return rules, nil
}

// readRuleFiles returns all YAML files under the rules directory, sorted by
// filename for a deterministic catalog order.
func (l *Loader) readRuleFiles() ([]string, error) {
	var files []string

	err := filepath.WalkDir(l.rulesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// watchFiles polls the rules directory for modification-time changes.
func (l *Loader) watchFiles(reloadChan chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var lastModTime time.Time

	for range ticker.C {
		hasChanges := false

		err := filepath.WalkDir(l.rulesDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			ext := strings.ToLower(filepath.Ext(path))
			if ext == ".yaml" || ext == ".yml" {
				info, err := d.Info()
				if err != nil {
					return err
				}
				if info.ModTime().After(lastModTime) {
					lastModTime = info.ModTime()
					hasChanges = true
				}
			}
			return nil
		})
		if err != nil {
			l.logger.Error("Error watching rule files", "error", err)
			continue
		}

		if hasChanges {
			l.logger.Info("Rule files changed, triggering reload")
			select {
			case reloadChan <- struct{}{}:
			default:
			}
		}
	}
}

// debouncedReload coalesces bursts of file-change notifications into a single
// reload.
func (l *Loader) debouncedReload(reloadChan chan struct{}) {
	var timer *time.Timer

	for range reloadChan {
		if timer != nil {
			timer.Stop()
		}

		timer = time.AfterFunc(time.Duration(l.debounceMs)*time.Millisecond, func() {
			if _, err := l.LoadSnapshot(); err != nil {
				l.logger.Error("Failed to reload rule catalog, keeping previous snapshot", "error", err)
			}
		})
	}
}

// notifyWatchers notifies all subscribed watchers.
func (l *Loader) notifyWatchers() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ch := range l.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
