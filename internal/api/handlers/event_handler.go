package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/promptshield/promptshield/backend/internal/models"
	"github.com/promptshield/promptshield/backend/internal/services"
)

// EventHandler exposes the attack event log to the review dashboard.
type EventHandler struct {
	events *services.EventService
}

func NewEventHandler(events *services.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// List handles GET /events?limit=&layer=.
func (h *EventHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	var (
		events []models.AttackEvent
		err    error
	)
	if layer := c.Query("layer"); layer != "" {
		events, err = h.events.ListByLayer(layer, limit)
	} else {
		events, err = h.events.ListRecent(limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load events"})
		return
	}
	if events == nil {
		events = []models.AttackEvent{}
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}
