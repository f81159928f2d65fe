package models

import (
	"time"

	"github.com/google/uuid"
)

type Answer struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	QuestionID uuid.UUID `gorm:"type:uuid;not null;index" json:"questionId"`
	Question   Question  `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"-"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	User       User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type CreateAnswerRequest struct {
	Content    string `json:"content" binding:"required,min=2"`
	QuestionID string `json:"questionId" binding:"required,uuid"`
}

type UpdateAnswerRequest struct {
	Content string `json:"content" binding:"required,min=2"`
}

type AnswerResponse struct {
	ID         uuid.UUID `json:"id"`
	Content    string    `json:"content"`
	QuestionID uuid.UUID `json:"questionId"`
	UserID     uuid.UUID `json:"userId"`
	User       Author    `json:"user"`
	Upvotes    int64     `json:"upvotes"`
	Downvotes  int64     `json:"downvotes"`
	Net        int64     `json:"net"`
	UserVote   Direction `json:"userVote,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
