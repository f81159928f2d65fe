package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stackit/stackit/backend/internal/apperrors"
	"github.com/stackit/stackit/backend/internal/auth"
	"github.com/stackit/stackit/backend/internal/database"
	"github.com/stackit/stackit/backend/internal/models"
	"github.com/stackit/stackit/backend/internal/response"
)

type AuthHandler struct {
	db     *gorm.DB
	tokens *auth.Tokens
}

func NewAuthHandler(db *gorm.DB, tokens *auth.Tokens) *AuthHandler {
	return &AuthHandler{db: db, tokens: tokens}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	email := normalizeEmail(req.Email)

	var count int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		response.Error(c, apperrors.Storage("Registration failed", err))
		return
	}
	if count > 0 {
		response.Error(c, apperrors.Conflict("User with this email already exists"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		response.Error(c, apperrors.Storage("Registration failed", err))
		return
	}

	user := models.User{
		Email:     email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Password:  hash,
		Role:      models.RoleUser,
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			response.Error(c, apperrors.Conflict("User with this email already exists"))
			return
		}
		response.Error(c, apperrors.Storage("Registration failed", err))
		return
	}

	token, err := h.tokens.Issue(&user)
	if err != nil {
		response.Error(c, apperrors.Storage("Registration failed", err))
		return
	}

	response.Success(c, http.StatusCreated, models.AuthResponse{User: user, Token: token}, "User registered successfully")
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	var user models.User
	err := h.db.WithContext(c.Request.Context()).Where("email = ?", normalizeEmail(req.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.Error(c, apperrors.Unauthenticated("Invalid email or password"))
		return
	}
	if err != nil {
		response.Error(c, apperrors.Storage("Login failed", err))
		return
	}

	ok, err := auth.CheckPassword(user.Password, req.Password)
	if err != nil {
		response.Error(c, apperrors.Storage("Login failed", err))
		return
	}
	if !ok {
		response.Error(c, apperrors.Unauthenticated("Invalid email or password"))
		return
	}

	token, err := h.tokens.Issue(&user)
	if err != nil {
		response.Error(c, apperrors.Storage("Login failed", err))
		return
	}

	response.Success(c, http.StatusOK, models.AuthResponse{User: user, Token: token}, "Login successful")
}

// GetMe returns the current authenticated user with activity stats
func (h *AuthHandler) GetMe(c *gin.Context) {
	identity, err := requireIdentity(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	user, err := findUser(h.db.WithContext(c.Request.Context()), identity.UserID.String())
	if err != nil {
		response.Error(c, err)
		return
	}

	stats, err := userStats(h.db.WithContext(c.Request.Context()), user.ID.String())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user, "stats": stats}, "User profile retrieved successfully")
}

// UpdateProfile changes the caller's name or email
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	identity, err := requireIdentity(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.UpdateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	user, err := findUser(db, identity.UserID.String())
	if err != nil {
		response.Error(c, err)
		return
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(req.FirstName); name != "" {
		updates["first_name"] = name
	}
	if name := strings.TrimSpace(req.LastName); name != "" {
		updates["last_name"] = name
	}
	if email := normalizeEmail(req.Email); email != "" && email != user.Email {
		var taken int64
		if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&taken).Error; err != nil {
			response.Error(c, apperrors.Storage("Failed to update profile", err))
			return
		}
		if taken > 0 {
			response.Error(c, apperrors.Conflict("Email is already taken"))
			return
		}
		updates["email"] = email
	}

	if len(updates) > 0 {
		if err := db.Model(user).Updates(updates).Error; err != nil {
			if database.IsUniqueViolation(err) {
				response.Error(c, apperrors.Conflict("Email is already taken"))
				return
			}
			response.Error(c, apperrors.Storage("Failed to update profile", err))
			return
		}
		if user, err = findUser(db, identity.UserID.String()); err != nil {
			response.Error(c, err)
			return
		}
	}

	response.Success(c, http.StatusOK, user, "Profile updated successfully")
}

// ChangePassword replaces the caller's password after checking the current one
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	identity, err := requireIdentity(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.ChangePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	user, err := findUser(db, identity.UserID.String())
	if err != nil {
		response.Error(c, err)
		return
	}

	ok, err := auth.CheckPassword(user.Password, req.CurrentPassword)
	if err != nil {
		response.Error(c, apperrors.Storage("Failed to change password", err))
		return
	}
	if !ok {
		response.Error(c, apperrors.Unauthenticated("Current password is incorrect"))
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		response.Error(c, apperrors.Storage("Failed to change password", err))
		return
	}
	if err := db.Model(user).Update("password", hash).Error; err != nil {
		response.Error(c, apperrors.Storage("Failed to change password", err))
		return
	}

	response.Success(c, http.StatusOK, nil, "Password changed successfully")
}

// Logout is a no-op for stateless tokens; the client discards its token.
func (h *AuthHandler) Logout(c *gin.Context) {
	response.Success(c, http.StatusOK, nil, "Logout successful")
}

func findUser(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	err := db.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.Storage("Failed to load user", err)
	}
	return &user, nil
}

func userStats(db *gorm.DB, userID string) (models.UserStats, error) {
	var stats models.UserStats
	if err := db.Model(&models.Question{}).Where("user_id = ?", userID).Count(&stats.QuestionsCount).Error; err != nil {
		return stats, apperrors.Storage("Failed to load user stats", err)
	}
	if err := db.Model(&models.Answer{}).Where("user_id = ?", userID).Count(&stats.AnswersCount).Error; err != nil {
		return stats, apperrors.Storage("Failed to load user stats", err)
	}
	if err := db.Model(&models.Vote{}).Where("voter_id = ?", userID).Count(&stats.VotesCount).Error; err != nil {
		return stats, apperrors.Storage("Failed to load user stats", err)
	}
	return stats, nil
}
