package handlers

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/stackit/stackit/backend/internal/ai"
	"github.com/stackit/stackit/backend/internal/auth"
	"github.com/stackit/stackit/backend/internal/voting"
)

// Handler combines all handler types
type Handler struct {
	Auth     *AuthHandler
	Question *QuestionHandler
	Answer   *AnswerHandler
	User     *UserHandler
	AI       *AIHandler
}

// Deps are the shared services every handler draws from.
type Deps struct {
	DB     *gorm.DB
	Tokens *auth.Tokens
	Votes  *voting.Service
	AI     *ai.Service
	Log    *slog.Logger
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(deps Deps) *Handler {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Handler{
		Auth:     NewAuthHandler(deps.DB, deps.Tokens),
		Question: NewQuestionHandler(deps.DB, deps.Votes, deps.Log),
		Answer:   NewAnswerHandler(deps.DB, deps.Votes),
		User:     NewUserHandler(deps.DB),
		AI:       NewAIHandler(deps.DB, deps.AI, deps.Votes),
	}
}
