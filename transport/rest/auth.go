package rest

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rocketscienceinc/connect4-backend/internal/apperror"
)

const (
	userIDContextKey = "connect4_user_id"
	bearerPrefix     = "Bearer "
)

type authService interface {
	ValidateToken(token string) (string, error)
	NewAnonymousUser() (userID, token string, expiresAt time.Time, err error)
}

type AuthHandler interface {
	SignInAnonymously(c *gin.Context)
	CheckAuth(c *gin.Context)
	Authorize(c *gin.Context)
}

type authHandler struct {
	logger *slog.Logger

	auth authService
}

func NewAuthHandler(logger *slog.Logger, auth authService) AuthHandler {
	return &authHandler{
		logger: logger.With("component", "auth-handler"),
		auth:   auth,
	}
}

type tokenResponse struct {
	UserID    string `json:"userId"`
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	ExpiresAt int64  `json:"expiresAt"`
}

type checkAuthResponse struct {
	CallerID string `json:"callerId"`
}

// SignInAnonymously - issues a token for a new opaque user id.
func (that *authHandler) SignInAnonymously(c *gin.Context) {
	log := that.logger.With("method", "SignInAnonymously")

	userID, token, expiresAt, err := that.auth.NewAnonymousUser()
	if err != nil {
		writeError(c, log, err)
		return
	}

	log.Debug("anonymous user signed in", "userID", userID)

	c.JSON(http.StatusOK, tokenResponse{
		UserID:    userID,
		Token:     token,
		TokenType: strings.TrimSpace(bearerPrefix),
		ExpiresAt: expiresAt.Unix(),
	})
}

func (that *authHandler) CheckAuth(c *gin.Context) {
	c.JSON(http.StatusOK, checkAuthResponse{CallerID: c.GetString(userIDContextKey)})
}

// Authorize - middleware resolving the bearer token into the caller id.
func (that *authHandler) Authorize(c *gin.Context) {
	log := that.logger.With("method", "Authorize")

	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		writeError(c, log, apperror.ErrUnauthenticated)
		return
	}

	userID, err := that.auth.ValidateToken(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
	if err != nil {
		writeError(c, log, err)
		return
	}

	c.Set(userIDContextKey, userID)
	c.Next()
}

func callerID(c *gin.Context) string {
	return c.GetString(userIDContextKey)
}
