package handlers

import (
	"context"

	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/internal/services"
	"github.com/ShaharSGA/Project/pkg/response"
	"github.com/gin-gonic/gin"
)

type LabHandler struct {
	lab *services.LabService
}

func NewLabHandler(lab *services.LabService) *LabHandler {
	return &LabHandler{lab: lab}
}

// Queue handles GET /api/lab/queue?client_id=&agent_type=
func (h *LabHandler) Queue(c *gin.Context) {
	clientID, ok := requireQuery(c, "client_id")
	if !ok {
		return
	}
	agentType, ok := requireQuery(c, "agent_type")
	if !ok {
		return
	}

	view, err := h.lab.Queue(c.Request.Context(), clientID, agentType)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, view)
}

// Prompt handles GET /api/lab/prompts/:category
func (h *LabHandler) Prompt(c *gin.Context) {
	category, err := models.ParseCategory(c.Param("category"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, services.PromptFor(category))
}

// Refine handles POST /api/lab/:id/refine
func (h *LabHandler) Refine(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input services.RefineInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	record, err := h.lab.SaveAndTrain(c.Request.Context(), id, input)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, record)
}

// Skip handles POST /api/lab/:id/skip
func (h *LabHandler) Skip(c *gin.Context) {
	h.dispose(c, h.lab.Skip, models.StatusSkipped)
}

// Discard handles POST /api/lab/:id/discard
func (h *LabHandler) Discard(c *gin.Context) {
	h.dispose(c, h.lab.Discard, models.StatusDiscarded)
}

func (h *LabHandler) dispose(c *gin.Context, action func(ctx context.Context, id uint) error, status models.Status) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := action(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"id": id, "status": status})
}

// Age handles POST /api/lab/age
func (h *LabHandler) Age(c *gin.Context) {
	n, err := h.lab.AutoAge(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"aged": n, "aging_days": h.lab.AgingDays()})
}
