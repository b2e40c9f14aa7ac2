package handlers

import (
	"github.com/ShaharSGA/Project/internal/services"
	"github.com/ShaharSGA/Project/pkg/response"
	"github.com/gin-gonic/gin"
)

type LearningHandler struct {
	learning *services.LearningService
}

func NewLearningHandler(learning *services.LearningService) *LearningHandler {
	return &LearningHandler{learning: learning}
}

type aggregateRequest struct {
	ClientID  string `json:"client_id" binding:"required"`
	AgentType string `json:"agent_type" binding:"required"`
}

// Aggregate rebuilds one learning corpus on demand
// POST /api/learning/aggregate
func (h *LearningHandler) Aggregate(c *gin.Context) {
	var req aggregateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "client_id and agent_type are required")
		return
	}

	result, err := h.learning.Aggregate(c.Request.Context(), req.ClientID, req.AgentType)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}
