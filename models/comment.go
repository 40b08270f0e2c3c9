package models

import "time"

// Comment represents a reply to a question.
type Comment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	QuestionID  uint      `gorm:"index;not null" json:"questionId"`
	AuthorID    uint      `gorm:"index;not null" json:"authorId"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	ContentHTML string    `gorm:"column:content_html;type:text;not null" json:"contentHtml"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Author      User      `gorm:"foreignKey:AuthorID" json:"author"`
}
