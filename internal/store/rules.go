package store

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/promptshield/promptshield/backend/internal/logger"
)

type ruleFile struct {
	Patterns []string `json:"patterns"`
}

// RuleStore owns the active detection patterns. The pipeline reads it on
// every inspection; only governance approval and seeding write to it.
type RuleStore struct {
	path string
	mu   sync.Mutex
}

// NewRuleStore creates a RuleStore backed by the given JSON file.
func NewRuleStore(path string) *RuleStore {
	return &RuleStore{path: path}
}

// Patterns returns the current active patterns. An unreadable or corrupt
// file degrades to an empty set so inspection stays available, but that
// state silently disables static protection, so it is logged at error level.
func (s *RuleStore) Patterns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// load reads the rule file. Callers must hold s.mu.
func (s *RuleStore) load() []string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Log().WithError(err).WithField("path", s.path).
				Error("rule store unreadable; static layer is running with NO rules")
		}
		return nil
	}

	var f ruleFile
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Log().WithError(err).WithField("path", s.path).
			Error("rule store corrupt; static layer is running with NO rules")
		return nil
	}

	return f.Patterns
}

// Add appends a pattern to the active set. Returns ErrRuleExists when the
// exact pattern string is already active.
func (s *RuleStore) Add(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	patterns := s.load()
	for _, p := range patterns {
		if p == pattern {
			return ErrRuleExists
		}
	}

	patterns = append(patterns, pattern)
	return writeAtomic(s.path, ruleFile{Patterns: patterns})
}

// Remove deletes a pattern from the active set. Unknown patterns are a no-op.
func (s *RuleStore) Remove(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	patterns := s.load()
	out := patterns[:0]
	for _, p := range patterns {
		if p != pattern {
			out = append(out, p)
		}
	}

	return writeAtomic(s.path, ruleFile{Patterns: out})
}

// Seed writes the starter patterns, but only when no rule file exists yet.
func (s *RuleStore) Seed(patterns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	}

	return writeAtomic(s.path, ruleFile{Patterns: patterns})
}
