package services

import (
	"fmt"

	"github.com/promptshield/promptshield/backend/internal/logger"
	"github.com/promptshield/promptshield/backend/internal/models"
	"github.com/promptshield/promptshield/backend/internal/store"
)

// GovernanceService promotes or discards pending rules. It is the only
// writer of the active rule store, closing the loop between the evolution
// engine and the inspection pipeline.
type GovernanceService struct {
	rules         *store.RuleStore
	pending       *store.PendingStore
	notifications *NotificationService
}

func NewGovernanceService(rules *store.RuleStore, pending *store.PendingStore, ns *NotificationService) *GovernanceService {
	return &GovernanceService{rules: rules, pending: pending, notifications: ns}
}

// Approve removes a pending rule from the queue and adds its pattern to the
// active rule set. An already-active pattern still clears the queue entry.
func (s *GovernanceService) Approve(pattern string) (store.PendingRule, error) {
	rule, err := s.pending.Remove(pattern)
	if err != nil {
		return store.PendingRule{}, err
	}

	if err := s.rules.Add(rule.Pattern); err != nil {
		if err == store.ErrRuleExists {
			logger.Log().WithField("pattern", rule.Pattern).
				Warn("approved pattern already active; dropping pending entry")
			return rule, nil
		}
		return store.PendingRule{}, fmt.Errorf("activate rule: %w", err)
	}

	if s.notifications != nil {
		s.notifications.Notify(models.NotificationTypeSuccess, "Rule approved",
			fmt.Sprintf("Pattern %q is now active", rule.Pattern))
	}

	return rule, nil
}

// Reject removes a pending rule from the queue without activating it.
func (s *GovernanceService) Reject(pattern string) (store.PendingRule, error) {
	rule, err := s.pending.Remove(pattern)
	if err != nil {
		return store.PendingRule{}, err
	}

	if s.notifications != nil {
		s.notifications.Notify(models.NotificationTypeInfo, "Rule rejected",
			fmt.Sprintf("Pattern %q was discarded", rule.Pattern))
	}

	return rule, nil
}

// ActivePatterns returns the current active rule set.
func (s *GovernanceService) ActivePatterns() []string {
	return s.rules.Patterns()
}

// PendingRules returns the current pending queue.
func (s *GovernanceService) PendingRules() []store.PendingRule {
	return s.pending.List()
}
