package store

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/promptshield/promptshield/backend/internal/logger"
)

// PendingRule is a synthesized, unapproved detection pattern awaiting a
// reviewer decision. Pending rules never expire on their own.
type PendingRule struct {
	Pattern   string    `json:"pattern"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Coverage  float64   `json:"coverage"`
}

// PendingStore owns the pending-rule queue file. The evolution cycle
// publishes into it; governance approve/reject consumes from it.
type PendingStore struct {
	path string
	mu   sync.Mutex
}

// NewPendingStore creates a PendingStore backed by the given JSON file.
func NewPendingStore(path string) *PendingStore {
	return &PendingStore{path: path}
}

// List returns the queue in publish order. A corrupt or unreadable file
// degrades to an empty queue and is logged loudly.
func (s *PendingStore) List() []PendingRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// load reads the queue file. Callers must hold s.mu.
func (s *PendingStore) load() []PendingRule {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Log().WithError(err).WithField("path", s.path).
				Error("pending queue unreadable; treating as empty")
		}
		return nil
	}

	var rules []PendingRule
	if err := json.Unmarshal(data, &rules); err != nil {
		logger.Log().WithError(err).WithField("path", s.path).
			Error("pending queue corrupt; treating as empty")
		return nil
	}

	return rules
}

// Publish appends a candidate to the queue. Publishing the exact same
// pattern twice is a no-op: the second call returns false with the queue
// unchanged, which keeps repeated cycle output idempotent.
func (s *PendingStore) Publish(rule PendingRule) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules := s.load()
	for _, r := range rules {
		if r.Pattern == rule.Pattern {
			return false, nil
		}
	}

	if rule.Timestamp.IsZero() {
		rule.Timestamp = time.Now().UTC()
	}

	rules = append(rules, rule)
	if err := writeAtomic(s.path, rules); err != nil {
		return false, err
	}

	return true, nil
}

// Remove takes a pending rule out of the queue by exact pattern string and
// returns it. ErrPendingNotFound when the pattern is not queued.
func (s *PendingStore) Remove(pattern string) (PendingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules := s.load()
	out := make([]PendingRule, 0, len(rules))
	var removed PendingRule
	found := false
	for _, r := range rules {
		if r.Pattern == pattern && !found {
			removed = r
			found = true
			continue
		}
		out = append(out, r)
	}

	if !found {
		return PendingRule{}, ErrPendingNotFound
	}

	if err := writeAtomic(s.path, out); err != nil {
		return PendingRule{}, err
	}

	return removed, nil
}
