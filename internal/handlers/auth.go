package handlers

import (
	"github.com/ShaharSGA/Project/internal/services"
	"github.com/ShaharSGA/Project/pkg/logger"
	"github.com/ShaharSGA/Project/pkg/response"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login handles the shared-password login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.NewBadRequest("password is required").WithField("password"))
		return
	}

	resp, err := h.authService.Login(&req)
	if err != nil {
		logger.Warn().Str("ip", c.ClientIP()).Msg("[Auth] failed login")
		fail(c, err)
		return
	}

	response.Success(c, resp)
}
