package models

import "time"

// Question is a post asking the community something. AuthorID never changes after creation.
type Question struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	ContentHTML string    `gorm:"column:content_html;type:text;not null" json:"contentHtml"`
	Hidden      bool      `gorm:"not null;default:false;index" json:"hidden"`
	AuthorID    uint      `gorm:"index;not null" json:"authorId"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Author      User      `gorm:"foreignKey:AuthorID" json:"author"`
	Comments    []Comment `gorm:"foreignKey:QuestionID" json:"comments,omitempty"`
	Upvotes     []Upvote  `gorm:"foreignKey:QuestionID" json:"likedBy,omitempty"`
}
