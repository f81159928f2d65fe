package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stackit/stackit/backend/internal/apperrors"
	"github.com/stackit/stackit/backend/internal/models"
	"github.com/stackit/stackit/backend/internal/response"
)

type UserHandler struct {
	db *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// GetUserProfile returns a user's public profile and activity stats
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	id, err := pathID(c, "user")
	if err != nil {
		response.Error(c, err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	user, err := findUser(db, id.String())
	if err != nil {
		response.Error(c, err)
		return
	}

	stats, err := userStats(db, user.ID.String())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":      user.Author(),
		"createdAt": user.CreatedAt,
		"stats":     stats,
	}, "User profile retrieved successfully")
}

// GetUserQuestions returns all questions by a specific user, newest first
func (h *UserHandler) GetUserQuestions(c *gin.Context) {
	id, err := pathID(c, "user")
	if err != nil {
		response.Error(c, err)
		return
	}

	var questions []models.Question
	err = h.db.WithContext(c.Request.Context()).
		Preload("Tags").
		Where("user_id = ?", id).
		Order("created_at desc").
		Find(&questions).Error
	if err != nil {
		response.Error(c, apperrors.Storage("Failed to fetch user questions", err))
		return
	}

	items := make([]gin.H, 0, len(questions))
	for _, q := range questions {
		items = append(items, gin.H{
			"id":        q.ID,
			"title":     q.Title,
			"tags":      q.TagNames(),
			"createdAt": q.CreatedAt,
		})
	}

	response.Success(c, http.StatusOK, items, "User questions fetched successfully")
}
