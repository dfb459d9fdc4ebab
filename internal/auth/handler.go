package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"github.com/yuditriaji/cafe-backend/pkg/session"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errNoAccess = errors.New("role has no access")

type Handler struct {
	db     *gorm.DB
	tokens *session.Manager
}

func NewHandler(db *gorm.DB, tokens *session.Manager) *Handler {
	return &Handler{db: db, tokens: tokens}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	User         database.User `json:"user"`
}

// Login authenticates a user with username/password
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).
		Preload("Role").
		Where("username = ?", req.Username).
		Take(&user).Error; err != nil {
		if !database.IsNotFound(err) {
			log.Error().Err(err).Msg("Failed to look up user")
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Info().Str("username", req.Username).Str("ip", c.ClientIP()).Msg("Failed login attempt")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.respond(c, user, http.StatusOK)
}

// RefreshToken issues new tokens from a refresh token. The user is reloaded
// so role changes and deletions take effect.
func (h *Handler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.tokens.ParseRefresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).Preload("Role").Take(&user, s.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	h.respond(c, user, http.StatusOK)
}

// GetMe returns the signed-in user
func (h *Handler) GetMe(c *gin.Context) {
	s, ok := session.From(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
		return
	}

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).Preload("Role").Take(&user, s.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":        user,
		"role":        s.Role,
		"permissions": user.Role.Permissions,
	})
}

func (h *Handler) respond(c *gin.Context, user database.User, status int) {
	tokens, err := h.issue(user)
	if err != nil {
		if errors.Is(err, errNoAccess) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Your role does not allow signing in"})
			return
		}
		log.Error().Err(err).Uint("user_id", user.ID).Msg("Failed to issue tokens")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue tokens"})
		return
	}

	c.JSON(status, AuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		User:         user,
	})
}

func (h *Handler) issue(user database.User) (session.Tokens, error) {
	role, err := session.ParseRole(user.Role.RoleName)
	if err != nil {
		return session.Tokens{}, errNoAccess
	}
	return h.tokens.Issue(session.Session{
		UserID:   user.ID,
		Username: user.Username,
		Role:     role,
	})
}
