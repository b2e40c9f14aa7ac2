package services

import (
	"errors"
	"strings"
	"time"

	"github.com/ShaharSGA/Project/internal/config"
	"github.com/ShaharSGA/Project/internal/utils"
)

const (
	reviewerRole    = "reviewer"
	defaultUsername = "reviewer"
)

var ErrInvalidCredentials = errors.New("invalid password")

// AuthService checks the shared pilot password and issues session tokens.
type AuthService struct {
	passwordHash string
	expireHour   int
	tokens       *utils.TokenManager
}

// NewAuthService accepts the app password either as plain text or as a
// bcrypt hash.
func NewAuthService(cfg *config.AuthConfig, tokens *utils.TokenManager) (*AuthService, error) {
	if cfg.AppPassword == "" {
		return nil, errors.New("app password is not configured")
	}

	hash := cfg.AppPassword
	if !strings.HasPrefix(hash, "$2") {
		var err error
		if hash, err = utils.HashPassword(cfg.AppPassword); err != nil {
			return nil, err
		}
	}

	expire := cfg.ExpireHour
	if expire <= 0 {
		expire = 24
	}
	return &AuthService{passwordHash: hash, expireHour: expire, tokens: tokens}, nil
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	Token    string    `json:"token"`
	Username string    `json:"username"`
	ExpireAt time.Time `json:"expire_at"`
}

func (s *AuthService) Login(req *LoginRequest) (*LoginResult, error) {
	if !utils.CheckPassword(req.Password, s.passwordHash) {
		return nil, ErrInvalidCredentials
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = defaultUsername
	}

	token, err := s.tokens.GenerateToken(username, reviewerRole, s.expireHour)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:    token,
		Username: username,
		ExpireAt: time.Now().Add(time.Duration(s.expireHour) * time.Hour),
	}, nil
}
