package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ShaharSGA/Project/pkg/response"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db        Pinger
	queueMode string
}

// NewHealthHandler builds the health probe. db may be nil when the
// in-memory store is used.
func NewHealthHandler(db Pinger, queueMode string) *HealthHandler {
	return &HealthHandler{db: db, queueMode: queueMode}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	status := "ok"
	database := "memory"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		database = "up"
		if err := h.db.PingContext(ctx); err != nil {
			status, database = "degraded", "down"
		}
	}

	body := gin.H{
		"status":   status,
		"database": database,
		"queue":    h.queueMode,
	}
	if status != "ok" {
		c.JSON(http.StatusServiceUnavailable, response.Response{Code: 503, Message: status, Data: body})
		return
	}
	response.Success(c, body)
}
