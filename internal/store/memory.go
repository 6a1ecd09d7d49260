// Package store keeps a bounded in-memory audit trail of recent verdicts.
// Persistence proper belongs to the case-management collaborator; this store
// is an observability sink only.
package store

import (
	"container/ring"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bhedir/AI-Driven-SOAR-Platform/internal/model"
)

// MemoryStore provides thread-safe verdict storage with a ring buffer and LRU
// deduplication keyed by content hash, so repeated identical inputs are
// recorded once.
type MemoryStore struct {
	mu          sync.RWMutex
	verdicts    *ring.Ring
	dedupe      *lru.Cache[string, bool]
	maxVerdicts int
	dedupeCap   int
}

// NewMemoryStore creates a new memory store with the given capacities.
func NewMemoryStore(maxVerdicts, dedupeCap int) *MemoryStore {
	dedupeCache, _ := lru.New[string, bool](dedupeCap)

	return &MemoryStore{
		verdicts:    ring.New(maxVerdicts),
		dedupe:      dedupeCache,
		maxVerdicts: maxVerdicts,
		dedupeCap:   dedupeCap,
	}
}

// AddVerdict records a verdict unless an identical input was recorded
// recently. Returns false for duplicates.
func (s *MemoryStore) AddVerdict(v *model.Verdict) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.dedupe.Get(v.ContentHash); exists {
		return false
	}
	s.dedupe.Add(v.ContentHash, true)

	s.verdicts.Value = v
	s.verdicts = s.verdicts.Next()

	return true
}

// GetVerdicts returns all stored verdicts, oldest first.
func (s *MemoryStore) GetVerdicts() []*model.Verdict {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Verdict
	s.verdicts.Do(func(value interface{}) {
		if v, ok := value.(*model.Verdict); ok && v != nil {
			out = append(out, v)
		}
	})
	return out
}

// GetVerdictsByRiskLevel returns stored verdicts at or above the given level.
func (s *MemoryStore) GetVerdictsByRiskLevel(minLevel model.RiskLevel) []*model.Verdict {
	s.mu.RLock()
	defer s.mu.RUnlock()

	minRank := minLevel.Rank()

	var out []*model.Verdict
	s.verdicts.Do(func(value interface{}) {
		if v, ok := value.(*model.Verdict); ok && v != nil && v.RiskLevel.Rank() >= minRank {
			out = append(out, v)
		}
	})
	return out
}

// ClearVerdicts removes all verdicts and resets the dedupe cache.
func (s *MemoryStore) ClearVerdicts() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.verdicts = ring.New(s.maxVerdicts)
	s.dedupe.Purge()
}

// GetStats returns counters describing the store contents.
func (s *MemoryStore) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	byLevel := make(map[string]int)
	s.verdicts.Do(func(value interface{}) {
		if v, ok := value.(*model.Verdict); ok && v != nil {
			total++
			byLevel[string(v.RiskLevel)]++
		}
	})

	return map[string]interface{}{
		"total_verdicts": total,
		"by_risk_level":  byLevel,
		"dedupe_entries": s.dedupe.Len(),
		"capacity":       s.maxVerdicts,
	}
}
