package handlers

import (
	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/internal/services"
	"github.com/ShaharSGA/Project/internal/store"
	"github.com/ShaharSGA/Project/pkg/response"
	"github.com/gin-gonic/gin"
)

type FeedbackHandler struct {
	service *services.FeedbackService
}

func NewFeedbackHandler(service *services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// Submit handles POST /api/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req services.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.service.Submit(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Created(c, result)
}

// Get handles GET /api/feedback/:id
func (h *FeedbackHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	record, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, record)
}

// Recent handles GET /api/feedback/recent?client_id=&agent_type=&days=&min_confidence=
func (h *FeedbackHandler) Recent(c *gin.Context) {
	clientID, ok := requireQuery(c, "client_id")
	if !ok {
		return
	}
	agentType, ok := requireQuery(c, "agent_type")
	if !ok {
		return
	}
	days, ok := queryInt(c, "days", 0)
	if !ok {
		return
	}
	minConfidence, ok := queryFloat(c, "min_confidence", 0)
	if !ok {
		return
	}

	records, err := h.service.Recent(c.Request.Context(), clientID, agentType, days, minConfidence)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"items": nonNilRecords(records), "total": len(records)})
}

// Patterns handles GET /api/feedback/patterns
func (h *FeedbackHandler) Patterns(c *gin.Context) {
	clientID, ok := requireQuery(c, "client_id")
	if !ok {
		return
	}
	agentType, ok := requireQuery(c, "agent_type")
	if !ok {
		return
	}

	filter := store.PatternFilter{
		ClientID:  clientID,
		AgentType: agentType,
		Persona:   c.Query("persona"),
		Platform:  c.Query("platform"),
	}
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			fail(c, err)
			return
		}
		filter.Status = status
	}
	if filter.MinRating, ok = queryInt(c, "min_rating", 0); !ok {
		return
	}
	if filter.MaxRating, ok = queryInt(c, "max_rating", 0); !ok {
		return
	}
	if filter.MinConfidence, ok = queryFloat(c, "min_confidence", 0); !ok {
		return
	}
	if filter.Limit, ok = queryInt(c, "limit", store.DefaultPatternLimit); !ok {
		return
	}

	records, err := h.service.Patterns(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"items": nonNilRecords(records), "total": len(records)})
}

// Stats handles GET /api/feedback/stats
func (h *FeedbackHandler) Stats(c *gin.Context) {
	clientID, ok := requireQuery(c, "client_id")
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), clientID, c.Query("agent_type"))
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, stats)
}

func nonNilRecords(records []models.FeedbackRecord) []models.FeedbackRecord {
	if records == nil {
		return []models.FeedbackRecord{}
	}
	return records
}
