package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptshield/promptshield/backend/internal/services"
	"github.com/promptshield/promptshield/backend/internal/store"
)

// RuleHandler exposes the active rule set and the pending queue, and carries
// the approve/reject governance actions.
type RuleHandler struct {
	governance *services.GovernanceService
}

func NewRuleHandler(governance *services.GovernanceService) *RuleHandler {
	return &RuleHandler{governance: governance}
}

// ListActive handles GET /rules.
func (h *RuleHandler) ListActive(c *gin.Context) {
	patterns := h.governance.ActivePatterns()
	if patterns == nil {
		patterns = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"patterns": patterns})
}

// ListPending handles GET /rules/pending.
func (h *RuleHandler) ListPending(c *gin.Context) {
	pending := h.governance.PendingRules()
	if pending == nil {
		pending = []store.PendingRule{}
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending})
}

type ruleActionRequest struct {
	Pattern string `json:"pattern" binding:"required"`
}

// Approve handles POST /rules/approve.
func (h *RuleHandler) Approve(c *gin.Context) {
	var req ruleActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pattern is required"})
		return
	}

	rule, err := h.governance.Approve(req.Pattern)
	if err != nil {
		if errors.Is(err, store.ErrPendingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pattern not in pending queue"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to approve rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "approved", "rule": rule})
}

// Reject handles POST /rules/reject.
func (h *RuleHandler) Reject(c *gin.Context) {
	var req ruleActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pattern is required"})
		return
	}

	rule, err := h.governance.Reject(req.Pattern)
	if err != nil {
		if errors.Is(err, store.ErrPendingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pattern not in pending queue"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reject rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "rejected", "rule": rule})
}
