package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/whiteboard-signaling/internal/middleware"
	"github.com/mossy-p/whiteboard-signaling/internal/models"
	"github.com/rs/zerolog"
)

const tokenTTL = 24 * time.Hour

// LoginRequest represents the login request body
type LoginRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Email       string `json:"email" binding:"omitempty,email"`
	DisplayName string `json:"displayName"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token       string `json:"token"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Login issues a token carrying the caller's identity.
// For demo purposes, accepts any username/password combination
func Login(jwtSecret string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}

		id := models.Identity{
			UserID:      strings.ToLower(strings.TrimSpace(req.Username)),
			Email:       req.Email,
			DisplayName: req.DisplayName,
		}
		if id.DisplayName == "" {
			id.DisplayName = req.Username
		}

		token, err := middleware.IssueToken(jwtSecret, id, tokenTTL)
		if err != nil {
			log.Error().Err(err).Msg("failed to sign token")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to generate token",
			})
			return
		}

		c.JSON(http.StatusOK, LoginResponse{
			Token:       token,
			UserID:      id.UserID,
			DisplayName: id.DisplayName,
		})
	}
}
