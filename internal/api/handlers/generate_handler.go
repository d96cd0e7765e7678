package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptshield/promptshield/backend/internal/api/middleware"
	"github.com/promptshield/promptshield/backend/internal/llm"
	"github.com/promptshield/promptshield/backend/internal/pipeline"
)

// placeholderResponse stands in for the model when the upstream call fails,
// so the caller gets a safe reply instead of an error or an empty string
// flowing into the output validator.
const placeholderResponse = "The assistant is temporarily unavailable. Please try again in a moment."

// GenerateHandler is the request/response boundary: inspect the prompt, call
// the upstream model, inspect the response.
type GenerateHandler struct {
	pipeline *pipeline.Pipeline
	provider llm.Provider
}

func NewGenerateHandler(p *pipeline.Pipeline, provider llm.Provider) *GenerateHandler {
	return &GenerateHandler{pipeline: p, provider: provider}
}

type generateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// Generate handles POST /generate.
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	log := middleware.GetRequestLogger(c)

	verdict, err := h.pipeline.InspectPrompt(c.Request.Context(), req.Prompt)
	if err != nil {
		// A classifier failure is not a Safe verdict. Fail closed.
		log.WithError(err).Error("prompt inspection failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "inspection unavailable, request not processed",
		})
		return
	}
	if !verdict.Safe {
		c.JSON(http.StatusOK, blockedBody(verdict))
		return
	}

	response, err := h.provider.ChatCompletion(c.Request.Context(), []llm.Message{
		{Role: "user", Content: req.Prompt},
	})
	if err != nil {
		log.WithError(err).Warn("upstream model failed; serving placeholder")
		response = placeholderResponse
	}

	verdict, err = h.pipeline.InspectResponse(c.Request.Context(), response, req.Prompt)
	if err != nil {
		log.WithError(err).Error("response inspection failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "inspection unavailable, request not processed",
		})
		return
	}
	if !verdict.Safe {
		c.JSON(http.StatusOK, blockedBody(verdict))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"response": response,
	})
}

func blockedBody(v pipeline.Verdict) gin.H {
	return gin.H{
		"status":  "blocked",
		"layer":   v.Layer,
		"message": v.Reason,
		"details": gin.H{"confidence": v.Confidence},
	}
}
