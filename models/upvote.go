package models

import "time"

// Upvote is a like of a question. The composite key allows one per (question, user).
type Upvote struct {
	QuestionID uint      `gorm:"primaryKey;autoIncrement:false" json:"questionId"`
	UserID     uint      `gorm:"primaryKey;autoIncrement:false;index" json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
	User       User      `gorm:"foreignKey:UserID" json:"user"`
}
