package models

import (
	"time"

	"github.com/google/uuid"
)

type Question struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Title       string    `gorm:"size:150;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	User        User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Tags        []Tag     `gorm:"many2many:question_tags;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Tag struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name string    `gorm:"uniqueIndex;not null" json:"name"`
}

type CreateQuestionRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Tags        []string `json:"tags" binding:"required"`
}

type UpdateQuestionRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

// QuestionResponse is a question with its author, tag names and current score.
type QuestionResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UserID      uuid.UUID `json:"userId"`
	User        Author    `json:"user"`
	Tags        []string  `json:"tags"`
	Upvotes     int64     `json:"upvotes"`
	Downvotes   int64     `json:"downvotes"`
	Net         int64     `json:"net"`
	UserVote    Direction `json:"userVote,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (q Question) TagNames() []string {
	names := make([]string, 0, len(q.Tags))
	for _, tag := range q.Tags {
		names = append(names, tag.Name)
	}
	return names
}
