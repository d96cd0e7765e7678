package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/promptshield/promptshield/backend/internal/logger"
	"github.com/promptshield/promptshield/backend/internal/models"
)

// EventService owns the append-only attack event log.
type EventService struct {
	db *gorm.DB
}

// NewEventService returns an EventService using the provided DB.
func NewEventService(db *gorm.DB) *EventService {
	return &EventService{db: db}
}

// LogAttack appends a blocked-interaction record. The pipeline calls this
// before returning a block verdict, so every externally visible block has a
// durable record. A failed insert is retried once; at-least-once semantics,
// duplicates are tolerable, silently missing entries are not.
func (s *EventService) LogAttack(event *models.AttackEvent) error {
	if event == nil {
		return nil
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	err := s.db.Create(event).Error
	if err == nil {
		return nil
	}

	logger.Log().WithError(err).Warn("attack event insert failed, retrying once")
	event.ID = 0
	if retryErr := s.db.Create(event).Error; retryErr != nil {
		logger.Log().WithError(retryErr).WithField("layer", event.BlockedLayer).
			Error("attack event LOST after retry")
		return retryErr
	}

	return nil
}

// ListRecent returns attack events ordered newest first, bounded by limit.
func (s *EventService) ListRecent(limit int) ([]models.AttackEvent, error) {
	var events []models.AttackEvent
	q := s.db.Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListByLayer returns recent events for one triggering layer.
func (s *EventService) ListByLayer(layer string, limit int) ([]models.AttackEvent, error) {
	var events []models.AttackEvent
	q := s.db.Where("blocked_layer = ?", layer).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// RecentAttackPrompts returns the prompt texts of recent events whose layer
// is one of the known pipeline layers, newest first. The aggregator uses
// this as the internal sample source.
func (s *EventService) RecentAttackPrompts(limit int) ([]string, error) {
	var events []models.AttackEvent
	q := s.db.Where("blocked_layer IN ?", models.KnownLayers).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}

	prompts := make([]string, 0, len(events))
	for _, e := range events {
		prompts = append(prompts, e.Prompt)
	}
	return prompts, nil
}
