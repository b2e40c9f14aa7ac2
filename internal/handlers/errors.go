package handlers

import (
	"errors"
	"strconv"

	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/internal/services"
	"github.com/ShaharSGA/Project/pkg/logger"
	"github.com/ShaharSGA/Project/pkg/response"
	"github.com/gin-gonic/gin"
)

// toAppError maps domain errors onto HTTP statuses.
func toAppError(err error) *response.AppError {
	var verr *models.ValidationError
	var serr *models.StorageError

	switch {
	case errors.As(err, &verr):
		return response.NewBadRequest(verr.Message).WithField(verr.Field)
	case errors.Is(err, models.ErrNotFound):
		return response.NewNotFound("feedback not found")
	case errors.Is(err, models.ErrStatusConflict):
		return response.NewConflict("feedback is no longer waiting in the refinement lab")
	case errors.Is(err, models.ErrDuplicate):
		return response.NewConflict("feedback already exists")
	case errors.Is(err, services.ErrInvalidCredentials):
		return response.NewUnauthorized(err.Error())
	case errors.As(err, &serr):
		return response.NewServiceUnavailable("feedback storage unavailable")
	default:
		return response.NewServerError("internal error")
	}
}

func fail(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.HTTPStatus >= 500 {
		logger.ForRequest(c).Error().Err(err).Msg("request failed")
	}
	response.Error(c, appErr)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.Error(c, response.NewBadRequest("invalid id").WithField("id"))
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		response.Error(c, response.NewBadRequest("invalid "+key).WithField(key))
		return 0, false
	}
	return v, true
}

func queryFloat(c *gin.Context, key string, def float64) (float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		response.Error(c, response.NewBadRequest("invalid "+key).WithField(key))
		return 0, false
	}
	return v, true
}

// requireQuery reads a mandatory query parameter.
func requireQuery(c *gin.Context, key string) (string, bool) {
	v := c.Query(key)
	if v == "" {
		response.Error(c, response.NewBadRequest(key+" is required").WithField(key))
		return "", false
	}
	return v, true
}
