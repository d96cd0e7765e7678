package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Layer names recorded on blocked events. These strings are part of the
// persisted log format and the admin API, so they stay human readable.
const (
	LayerStatic     = "Static Rule Checker"
	LayerClassifier = "ML Classifier"
	LayerOutput     = "Output Validator"
)

// KnownLayers lists every layer that can produce an attack event.
var KnownLayers = []string{LayerStatic, LayerClassifier, LayerOutput}

// AttackEvent records one blocked interaction. Rows are append-only: the
// pipeline creates them at block time and nothing in this service mutates or
// deletes them afterwards.
type AttackEvent struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	UUID            string    `json:"uuid" gorm:"uniqueIndex"`
	Prompt          string    `json:"prompt" gorm:"type:text"`
	BlockedLayer    string    `json:"blocked_layer" gorm:"index"`
	ConfidenceScore float64   `json:"confidence_score"`
	BlockedContent  *string   `json:"blocked_content,omitempty" gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at" gorm:"index"`
}

func (e *AttackEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if e.UUID == "" {
		e.UUID = uuid.NewString()
	}
	return
}
