package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
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

const (
	titleMinLen       = 10
	titleMaxLen       = 150
	descriptionMinLen = 20
)

var tagFilterPattern = regexp.MustCompile(`^[a-zA-Z0-9,\s]*$`)

type QuestionHandler struct {
	db    *gorm.DB
	votes *voting.Service
	log   *slog.Logger
}

func NewQuestionHandler(db *gorm.DB, votes *voting.Service, log *slog.Logger) *QuestionHandler {
	return &QuestionHandler{db: db, votes: votes, log: log}
}

type listQuestionsQuery struct {
	Q     string `form:"q" binding:"max=200"`
	Tags  string `form:"tags"`
	Page  int    `form:"page,default=1" binding:"min=1,max=10000"`
	Limit int    `form:"limit,default=10" binding:"min=1,max=100"`
	Sort  string `form:"sort,default=newest" binding:"oneof=newest oldest"`
}

// splitTags turns "go, gorm,,sql" into [go gorm sql].
func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GetQuestions returns a filtered, paginated page of questions with scores
func (h *QuestionHandler) GetQuestions(c *gin.Context) {
	if _, err := url.ParseQuery(c.Request.URL.RawQuery); err != nil {
		response.Error(c, apperrors.InvalidArgument("Invalid query parameters"))
		return
	}

	var query listQuestionsQuery
	if err := bindQuery(c, &query); err != nil {
		response.Error(c, err)
		return
	}
	if !tagFilterPattern.MatchString(query.Tags) {
		response.Error(c, apperrors.Validation(apperrors.FieldError{
			Field:   "tags",
			Message: "Tags can only contain letters, numbers, commas, and spaces",
		}))
		return
	}

	ctx := c.Request.Context()
	tags := splitTags(query.Tags)
	filtered := func() *gorm.DB {
		tx := h.db.WithContext(ctx).Model(&models.Question{})
		if q := strings.TrimSpace(query.Q); q != "" {
			like := "%" + escapeLike(q) + "%"
			tx = tx.Where("title ILIKE ? OR description ILIKE ?", like, like)
		}
		if len(tags) > 0 {
			tagged := h.db.Table("question_tags").
				Select("question_tags.question_id").
				Joins("JOIN tags ON tags.id = question_tags.tag_id").
				Where("tags.name IN ?", tags)
			tx = tx.Where("id IN (?)", tagged)
		}
		return tx
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		response.Error(c, apperrors.Storage("Failed to fetch questions", err))
		return
	}

	order := "created_at desc"
	if query.Sort == "oldest" {
		order = "created_at asc"
	}

	var questions []models.Question
	err := filtered().
		Preload("User").
		Preload("Tags").
		Order(order).
		Offset((query.Page - 1) * query.Limit).
		Limit(query.Limit).
		Find(&questions).Error
	if err != nil {
		response.Error(c, apperrors.Storage("Failed to fetch questions", err))
		return
	}

	responses, err := h.toResponses(ctx, callerID(c), questions)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, responses, response.NewPagination(query.Page, query.Limit, total), "Questions fetched successfully")
}

// GetQuestion returns a single question by ID
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, err := pathID(c, "question")
	if err != nil {
		response.Error(c, err)
		return
	}

	question, err := loadQuestion(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp, err := h.toResponse(c.Request.Context(), callerID(c), *question)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, "Question fetched successfully")
}

// CreateQuestion creates a new question (PROTECTED - requires authentication)
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	identity, err := requireIdentity(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.CreateQuestionRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	tags := cleanTags(req.Tags)

	var fields []apperrors.FieldError
	fields = append(fields, validateTitle(title)...)
	fields = append(fields, validateDescription(description)...)
	if len(tags) == 0 {
		fields = append(fields, apperrors.FieldError{Field: "tags", Message: "At least one tag is required"})
	}
	if len(fields) > 0 {
		response.Error(c, apperrors.Validation(fields...))
		return
	}

	ctx := c.Request.Context()
	question := models.Question{
		Title:       title,
		Description: description,
		UserID:      identity.UserID,
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tagRows, err := upsertTags(tx, tags)
		if err != nil {
			return err
		}
		question.Tags = tagRows
		return tx.Create(&question).Error
	})
	if err != nil {
		response.Error(c, apperrors.Storage("Failed to create question", err))
		return
	}

	created, err := loadQuestion(h.db.WithContext(ctx), question.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	resp, err := h.toResponse(ctx, identity.UserID, *created)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, resp, "Question created successfully")
}

// UpdateQuestion updates an existing question (PROTECTED - requires ownership)
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
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

	var req models.UpdateQuestionRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	question, err := loadQuestion(h.db.WithContext(ctx), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !identity.CanModify(question.UserID) {
		response.Error(c, apperrors.Forbidden("You can only edit your own questions"))
		return
	}

	updates := map[string]any{}
	var fields []apperrors.FieldError
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		fields = append(fields, validateTitle(title)...)
		updates["title"] = title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		fields = append(fields, validateDescription(description)...)
		updates["description"] = description
	}
	var tags []string
	if req.Tags != nil {
		if tags = cleanTags(req.Tags); len(tags) == 0 {
			fields = append(fields, apperrors.FieldError{Field: "tags", Message: "At least one tag is required"})
		}
	}
	if len(fields) > 0 {
		response.Error(c, apperrors.Validation(fields...))
		return
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Question{ID: question.ID}).Updates(updates).Error; err != nil {
				return err
			}
		}
		if tags != nil {
			tagRows, err := upsertTags(tx, tags)
			if err != nil {
				return err
			}
			if err := tx.Model(question).Association("Tags").Replace(tagRows); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		response.Error(c, apperrors.Storage("Failed to update question", err))
		return
	}

	updated, err := loadQuestion(h.db.WithContext(ctx), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	resp, err := h.toResponse(ctx, identity.UserID, *updated)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, "Question updated successfully")
}

// DeleteQuestion deletes a question with its answers, tag links and every
// vote on either (PROTECTED - requires ownership)
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
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
	question, err := loadQuestion(h.db.WithContext(ctx), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !identity.CanModify(question.UserID) {
		response.Error(c, apperrors.Forbidden("You can only delete your own questions"))
		return
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var answerIDs []uuid.UUID
		if err := tx.Model(&models.Answer{}).Where("question_id = ?", id).Pluck("id", &answerIDs).Error; err != nil {
			return err
		}
		if err := voting.DeleteForTargets(tx, models.TargetAnswer, answerIDs...); err != nil {
			return err
		}
		if err := voting.DeleteForTargets(tx, models.TargetQuestion, id); err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", id).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Model(question).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&models.Question{}, "id = ?", id).Error
	})
	if err != nil {
		response.Error(c, apperrors.Storage("Failed to delete question", err))
		return
	}

	h.log.InfoContext(ctx, "question deleted", "question_id", id, "user_id", identity.UserID)
	response.Success(c, http.StatusOK, gin.H{"id": id}, "Question deleted successfully")
}

// VoteQuestion records the caller's UP or DOWN vote on a question
func (h *QuestionHandler) VoteQuestion(c *gin.Context) {
	castVote(c, h.votes, models.TargetQuestion, "questionId")
}

func (h *QuestionHandler) toResponse(ctx context.Context, voterID uuid.UUID, q models.Question) (models.QuestionResponse, error) {
	responses, err := h.toResponses(ctx, voterID, []models.Question{q})
	if err != nil {
		return models.QuestionResponse{}, err
	}
	return responses[0], nil
}

// toResponses scores all questions with one grouped count and attaches the
// caller's own vote, if any.
func (h *QuestionHandler) toResponses(ctx context.Context, voterID uuid.UUID, questions []models.Question) ([]models.QuestionResponse, error) {
	ids := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}

	snapshots, err := h.votes.Snapshots(ctx, models.TargetQuestion, ids)
	if err != nil {
		return nil, err
	}
	userVotes, err := h.votes.UserVotes(ctx, voterID, models.TargetQuestion, ids)
	if err != nil {
		return nil, err
	}

	responses := make([]models.QuestionResponse, 0, len(questions))
	for _, q := range questions {
		snapshot := snapshots[q.ID]
		responses = append(responses, models.QuestionResponse{
			ID:          q.ID,
			Title:       q.Title,
			Description: q.Description,
			UserID:      q.UserID,
			User:        q.User.Author(),
			Tags:        q.TagNames(),
			Upvotes:     snapshot.Upvotes,
			Downvotes:   snapshot.Downvotes,
			Net:         snapshot.Net,
			UserVote:    userVotes[q.ID],
			CreatedAt:   q.CreatedAt,
			UpdatedAt:   q.UpdatedAt,
		})
	}
	return responses, nil
}

func loadQuestion(db *gorm.DB, id uuid.UUID) (*models.Question, error) {
	var question models.Question
	err := db.Preload("User").Preload("Tags").First(&question, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Question not found")
	}
	if err != nil {
		return nil, apperrors.Storage("Failed to fetch question", err)
	}
	return &question, nil
}

// upsertTags returns the tag rows for names, creating the missing ones.
func upsertTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tag := models.Tag{Name: name}
		if err := tx.Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// cleanTags trims tag names and drops empties and duplicates.
func cleanTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}

func validateTitle(title string) []apperrors.FieldError {
	n := utf8.RuneCountInString(title)
	if n < titleMinLen || n > titleMaxLen {
		return []apperrors.FieldError{{Field: "title", Message: "Title must be between 10 and 150 characters"}}
	}
	return nil
}

func validateDescription(description string) []apperrors.FieldError {
	if utf8.RuneCountInString(description) < descriptionMinLen {
		return []apperrors.FieldError{{Field: "description", Message: "Description must be at least 20 characters long"}}
	}
	return nil
}
