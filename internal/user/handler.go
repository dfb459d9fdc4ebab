package user

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yuditriaji/cafe-backend/pkg/activitylog"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"github.com/yuditriaji/cafe-backend/pkg/session"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	logger *activitylog.Logger
}

func NewHandler(db *gorm.DB, logger *activitylog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

type CreateUserInput struct {
	Username string `json:"username" binding:"required,min=3,max=100"`
	Password string `json:"password" binding:"required,min=6"`
	RoleID   uint   `json:"role_id" binding:"required"`
}

type UpdateUserInput struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=100"`
	Password *string `json:"password" binding:"omitempty,min=6"`
	RoleID   *uint   `json:"role_id" binding:"omitempty,min=1"`
}

type CreateRoleInput struct {
	RoleName    string          `json:"role_name" binding:"required,max=50"`
	Permissions map[string]bool `json:"permissions"`
}

// ListUsers returns every account with its role name
func (h *Handler) ListUsers(c *gin.Context) {
	users := []database.User{}
	if err := h.db.WithContext(c.Request.Context()).
		Preload("Role").
		Order("username ASC").
		Find(&users).Error; err != nil {
		log.Error().Err(err).Msg("Failed to fetch users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// CreateUser adds a new account
func (h *Handler) CreateUser(c *gin.Context) {
	var input CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := h.db.WithContext(c.Request.Context())
	role, ok := h.loadRole(c, input.RoleID)
	if !ok {
		return
	}

	var existing int64
	if err := db.Model(&database.User{}).Where("username = ?", input.Username).Count(&existing).Error; err != nil {
		log.Error().Err(err).Str("username", input.Username).Msg("Failed to check username")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	user := database.User{
		Username:     input.Username,
		PasswordHash: string(hash),
		RoleID:       role.ID,
	}
	if err := db.Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
			return
		}
		log.Error().Err(err).Str("username", input.Username).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	user.RoleName = role.RoleName

	h.logger.LogCreate(c, "user", idString(user.ID), map[string]interface{}{
		"username": user.Username,
		"role":     role.RoleName,
	})

	c.JSON(http.StatusCreated, user)
}

// UpdateUser patches username, password or role
func (h *Handler) UpdateUser(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	var input UpdateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if input.Username != nil && *input.Username != user.Username {
		var taken int64
		if err := h.db.WithContext(c.Request.Context()).Model(&database.User{}).
			Where("username = ?", *input.Username).Count(&taken).Error; err != nil {
			log.Error().Err(err).Str("username", *input.Username).Msg("Failed to check username")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
		if taken > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
			return
		}
		updates["username"] = *input.Username
	}
	if input.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error().Err(err).Msg("Failed to hash password")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
		updates["password_hash"] = string(hash)
	}
	if input.RoleID != nil {
		if _, ok := h.loadRole(c, *input.RoleID); !ok {
			return
		}
		updates["role_id"] = *input.RoleID
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	db := h.db.WithContext(c.Request.Context())
	// Update through a bare model; the preloaded Role would write its id back into role_id.
	if err := db.Model(&database.User{ID: user.ID}).Updates(updates).Error; err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
			return
		}
		log.Error().Err(err).Uint("id", user.ID).Msg("Failed to update user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	var updated database.User
	if err := db.Preload("Role").Take(&updated, user.ID).Error; err != nil {
		log.Error().Err(err).Uint("id", user.ID).Msg("Failed to reload user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	fields := make([]string, 0, len(updates))
	for k := range updates {
		if k == "password_hash" {
			k = "password"
		}
		fields = append(fields, k)
	}
	h.logger.LogActivity(c, "update", "user", idString(user.ID), map[string]interface{}{
		"fields": fields,
	})

	c.JSON(http.StatusOK, updated)
}

// DeleteUser removes an account. Users cannot delete themselves.
func (h *Handler) DeleteUser(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	if s, signedIn := session.From(c); signedIn && s.UserID == user.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot delete your own account"})
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(&database.User{}, user.ID).Error; err != nil {
		log.Error().Err(err).Uint("id", user.ID).Msg("Failed to delete user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	h.logger.LogDelete(c, "user", idString(user.ID), map[string]interface{}{
		"username": user.Username,
		"role":     user.RoleName,
	})

	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// ListRoles returns every role
func (h *Handler) ListRoles(c *gin.Context) {
	roles := []database.Role{}
	if err := h.db.WithContext(c.Request.Context()).Order("id ASC").Find(&roles).Error; err != nil {
		log.Error().Err(err).Msg("Failed to fetch roles")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch roles"})
		return
	}
	c.JSON(http.StatusOK, roles)
}

// CreateRole adds a role
func (h *Handler) CreateRole(c *gin.Context) {
	var input CreateRoleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing int64
	if err := h.db.WithContext(c.Request.Context()).Model(&database.Role{}).
		Where("role_name = ?", input.RoleName).Count(&existing).Error; err != nil {
		log.Error().Err(err).Str("role_name", input.RoleName).Msg("Failed to check role name")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create role"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Role already exists"})
		return
	}

	role := database.Role{RoleName: input.RoleName, Permissions: input.Permissions}
	if role.Permissions == nil {
		role.Permissions = map[string]bool{}
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&role).Error; err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Role already exists"})
			return
		}
		log.Error().Err(err).Str("role_name", input.RoleName).Msg("Failed to create role")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create role"})
		return
	}

	if _, err := session.ParseRole(role.RoleName); err != nil {
		log.Warn().Str("role_name", role.RoleName).Msg("Role created without session access; its users cannot sign in")
	}

	c.JSON(http.StatusCreated, role)
}

func (h *Handler) loadUser(c *gin.Context) (*database.User, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return nil, false
	}

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).Preload("Role").Take(&user, uint(id)).Error; err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return nil, false
		}
		log.Error().Err(err).Uint64("id", id).Msg("Failed to fetch user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return nil, false
	}
	return &user, true
}

func (h *Handler) loadRole(c *gin.Context, id uint) (*database.Role, bool) {
	var role database.Role
	if err := h.db.WithContext(c.Request.Context()).Take(&role, id).Error; err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
			return nil, false
		}
		log.Error().Err(err).Uint("role_id", id).Msg("Failed to fetch role")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch role"})
		return nil, false
	}
	return &role, true
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
