package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stackit/stackit/backend/internal/ai"
	"github.com/stackit/stackit/backend/internal/apperrors"
	"github.com/stackit/stackit/backend/internal/models"
	"github.com/stackit/stackit/backend/internal/response"
	"github.com/stackit/stackit/backend/internal/voting"
)

type AIHandler struct {
	db    *gorm.DB
	ai    *ai.Service
	votes *voting.Service
}

func NewAIHandler(db *gorm.DB, svc *ai.Service, votes *voting.Service) *AIHandler {
	return &AIHandler{db: db, ai: svc, votes: votes}
}

type autoTagsRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
}

type summarizeRequest struct {
	Content     string `json:"content" binding:"required"`
	ContentType string `json:"contentType" binding:"omitempty,oneof=question answer"`
}

// GenerateAnswer asks the model to answer a question and stores the reply
// as an answer authored by the AI user. Only the question's owner or an
// admin may request it.
func (h *AIHandler) GenerateAnswer(c *gin.Context) {
	identity, err := requireIdentity(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	id, err := pathID(c, "question")
	if err != nil {
		response.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	db := h.db.WithContext(ctx)
	question, err := loadQuestion(db, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !identity.CanModify(question.UserID) {
		response.Error(c, apperrors.Forbidden("You can only generate AI answers for your own questions"))
		return
	}

	content, err := h.ai.Answer(ctx, question.Title, question.Description, question.TagNames())
	if err != nil {
		response.Error(c, err)
		return
	}

	var aiUser models.User
	err = db.Where("email = ?", models.AIUserEmail).First(&aiUser).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.Error(c, apperrors.Storage("AI user is missing", err))
		return
	}
	if err != nil {
		response.Error(c, apperrors.Storage("Failed to save AI answer", err))
		return
	}

	answer := models.Answer{
		Content:    content,
		QuestionID: question.ID,
		UserID:     aiUser.ID,
		User:       aiUser,
	}
	if err := db.Omit("User", "Question").Create(&answer).Error; err != nil {
		response.Error(c, apperrors.Storage("Failed to save AI answer", err))
		return
	}

	resp, err := answerResponse(ctx, h.votes, identity.UserID, answer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, resp, "AI answer generated successfully")
}

// AutoTags suggests tags for a draft question
func (h *AIHandler) AutoTags(c *gin.Context) {
	var req autoTagsRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	tags, err := h.ai.Tags(c.Request.Context(), req.Title, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tags": tags}, "Tags generated successfully")
}

// Summarize condenses a question or answer body
func (h *AIHandler) Summarize(c *gin.Context) {
	var req summarizeRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	summary, err := h.ai.Summarize(c.Request.Context(), req.Content, ai.ContentType(req.ContentType))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"summary": summary}, "Content summarized successfully")
}
