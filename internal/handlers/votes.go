package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stackit/stackit/backend/internal/middleware"
	"github.com/stackit/stackit/backend/internal/models"
	"github.com/stackit/stackit/backend/internal/response"
	"github.com/stackit/stackit/backend/internal/voting"
)

// castVote is shared by the question and answer vote routes. The response
// names the target id after its kind, e.g. questionId.
func castVote(c *gin.Context, votes *voting.Service, kind models.TargetKind, idKey string) {
	what := "question"
	if kind == models.TargetAnswer {
		what = "answer"
	}
	targetID, err := pathID(c, what)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.VoteRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	// A missing identity is passed through as uuid.Nil; the service rejects it.
	voterID := uuid.Nil
	if identity, ok := middleware.CurrentIdentity(c); ok {
		voterID = identity.UserID
	}

	result, err := votes.CastVote(c.Request.Context(), voterID, targetID, kind, models.Direction(req.VoteType))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		idKey:       result.TargetID,
		"upvotes":   result.Upvotes,
		"downvotes": result.Downvotes,
		"net":       result.Net,
		"userVote":  result.UserVote,
	}, "Vote registered successfully")
}
