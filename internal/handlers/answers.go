package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stackit/stackit/backend/internal/apperrors"
	"github.com/stackit/stackit/backend/internal/models"
	"github.com/stackit/stackit/backend/internal/response"
	"github.com/stackit/stackit/backend/internal/voting"
)

const answerMinLen = 2

type AnswerHandler struct {
	db    *gorm.DB
	votes *voting.Service
}

func NewAnswerHandler(db *gorm.DB, votes *voting.Service) *AnswerHandler {
	return &AnswerHandler{db: db, votes: votes}
}

// GetAnswers returns all answers for a question, oldest first, with scores
func (h *AnswerHandler) GetAnswers(c *gin.Context) {
	questionID, err := pathID(c, "question")
	if err != nil {
		response.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	var answers []models.Answer
	err = h.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Preload("User").
		Order("created_at asc").
		Find(&answers).Error
	if err != nil {
		response.Error(c, apperrors.Storage("Failed to fetch answers", err))
		return
	}

	responses, err := answerResponses(ctx, h.votes, callerID(c), answers)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, responses, "Answers fetched successfully")
}

// CreateAnswer posts an answer to a question
func (h *AnswerHandler) CreateAnswer(c *gin.Context) {
	identity, err := requireIdentity(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.CreateAnswerRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	content := strings.TrimSpace(req.Content)
	if fields := validateAnswerContent(content); fields != nil {
		response.Error(c, apperrors.Validation(fields...))
		return
	}

	ctx := c.Request.Context()
	questionID := uuid.MustParse(req.QuestionID)
	if _, err := loadQuestion(h.db.WithContext(ctx), questionID); err != nil {
		response.Error(c, err)
		return
	}

	answer := models.Answer{
		Content:    content,
		QuestionID: questionID,
		UserID:     identity.UserID,
	}
	if err := h.db.WithContext(ctx).Create(&answer).Error; err != nil {
		response.Error(c, apperrors.Storage("Failed to create answer", err))
		return
	}

	created, err := loadAnswer(h.db.WithContext(ctx), answer.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	resp, err := answerResponse(ctx, h.votes, identity.UserID, *created)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, resp, "Answer created successfully")
}

// UpdateAnswer edits an answer's content (PROTECTED - requires ownership)
func (h *AnswerHandler) UpdateAnswer(c *gin.Context) {
	identity, err := requireIdentity(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	id, err := pathID(c, "answer")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.UpdateAnswerRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	content := strings.TrimSpace(req.Content)
	if fields := validateAnswerContent(content); fields != nil {
		response.Error(c, apperrors.Validation(fields...))
		return
	}

	ctx := c.Request.Context()
	answer, err := loadAnswer(h.db.WithContext(ctx), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !identity.CanModify(answer.UserID) {
		response.Error(c, apperrors.Forbidden("You can only edit your own answers"))
		return
	}

	if err := h.db.WithContext(ctx).Model(answer).Update("content", content).Error; err != nil {
		response.Error(c, apperrors.Storage("Failed to update answer", err))
		return
	}
	answer.Content = content

	resp, err := answerResponse(ctx, h.votes, identity.UserID, *answer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, "Answer updated successfully")
}

// DeleteAnswer removes an answer and its votes (PROTECTED - requires ownership)
func (h *AnswerHandler) DeleteAnswer(c *gin.Context) {
	identity, err := requireIdentity(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	id, err := pathID(c, "answer")
	if err != nil {
		response.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	answer, err := loadAnswer(h.db.WithContext(ctx), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !identity.CanModify(answer.UserID) {
		response.Error(c, apperrors.Forbidden("You can only delete your own answers"))
		return
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := voting.DeleteForTargets(tx, models.TargetAnswer, id); err != nil {
			return err
		}
		return tx.Delete(&models.Answer{}, "id = ?", id).Error
	})
	if err != nil {
		response.Error(c, apperrors.Storage("Failed to delete answer", err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"id": id}, "Answer deleted successfully")
}

// VoteAnswer records the caller's UP or DOWN vote on an answer
func (h *AnswerHandler) VoteAnswer(c *gin.Context) {
	castVote(c, h.votes, models.TargetAnswer, "answerId")
}

func loadAnswer(db *gorm.DB, id uuid.UUID) (*models.Answer, error) {
	var answer models.Answer
	err := db.Preload("User").First(&answer, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Answer not found")
	}
	if err != nil {
		return nil, apperrors.Storage("Failed to fetch answer", err)
	}
	return &answer, nil
}

func answerResponse(ctx context.Context, votes *voting.Service, voterID uuid.UUID, a models.Answer) (models.AnswerResponse, error) {
	responses, err := answerResponses(ctx, votes, voterID, []models.Answer{a})
	if err != nil {
		return models.AnswerResponse{}, err
	}
	return responses[0], nil
}

func answerResponses(ctx context.Context, votes *voting.Service, voterID uuid.UUID, answers []models.Answer) ([]models.AnswerResponse, error) {
	ids := make([]uuid.UUID, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.ID)
	}

	snapshots, err := votes.Snapshots(ctx, models.TargetAnswer, ids)
	if err != nil {
		return nil, err
	}
	userVotes, err := votes.UserVotes(ctx, voterID, models.TargetAnswer, ids)
	if err != nil {
		return nil, err
	}

	responses := make([]models.AnswerResponse, 0, len(answers))
	for _, a := range answers {
		snapshot := snapshots[a.ID]
		responses = append(responses, models.AnswerResponse{
			ID:         a.ID,
			Content:    a.Content,
			QuestionID: a.QuestionID,
			UserID:     a.UserID,
			User:       a.User.Author(),
			Upvotes:    snapshot.Upvotes,
			Downvotes:  snapshot.Downvotes,
			Net:        snapshot.Net,
			UserVote:   userVotes[a.ID],
			CreatedAt:  a.CreatedAt,
			UpdatedAt:  a.UpdatedAt,
		})
	}
	return responses, nil
}

func validateAnswerContent(content string) []apperrors.FieldError {
	if utf8.RuneCountInString(content) < answerMinLen {
		return []apperrors.FieldError{{Field: "content", Message: "Answer content must be at least 2 characters long"}}
	}
	return nil
}
