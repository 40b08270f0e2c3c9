package services

import (
	"time"

	"github.com/qaforum/qaforum/models"
)

// UserView is the public projection of a user embedded in other payloads.
type UserView struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// LikeView is one entry of a question's like list.
type LikeView struct {
	UserID uint     `json:"userId"`
	User   UserView `json:"user"`
}

// QuestionSummary is a feed row.
type QuestionSummary struct {
	ID           uint       `json:"id"`
	Title        string     `json:"title"`
	ContentHTML  string     `json:"contentHtml"`
	CreatedAt    time.Time  `json:"createdAt"`
	Hidden       bool       `json:"hidden"`
	Author       UserView   `json:"author"`
	LikedBy      []LikeView `json:"likedBy"`
	CommentCount int64      `json:"commentCount"`
}

// FeedResult is one page of the feed plus the size of the whole filtered set.
type FeedResult struct {
	Questions     []QuestionSummary `json:"questions"`
	QuestionCount int64             `json:"questionCount"`
}

// CommentView is a comment with its author.
type CommentView struct {
	ID          uint      `json:"id"`
	QuestionID  uint      `json:"questionId"`
	Content     string    `json:"content"`
	ContentHTML string    `json:"contentHtml"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Author      UserView  `json:"author"`
}

// QuestionDetail is the full question page payload.
type QuestionDetail struct {
	ID          uint          `json:"id"`
	Title       string        `json:"title"`
	Content     string        `json:"content"`
	ContentHTML string        `json:"contentHtml"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	Hidden      bool          `json:"hidden"`
	Author      UserView      `json:"author"`
	Comments    []CommentView `json:"comments"`
	LikedBy     []LikeView    `json:"likedBy"`
}

// SearchHit is a search result row.
type SearchHit struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Author    UserView  `json:"author"`
}

// QuestionStats summarizes engagement with one question.
type QuestionStats struct {
	Views    int64 `json:"views"`
	Comments int64 `json:"comments"`
	Likes    int64 `json:"likes"`
}

// Profile is the public profile page payload.
type Profile struct {
	ID            uint        `json:"id"`
	Name          string      `json:"name"`
	Image         string      `json:"image"`
	Role          models.Role `json:"role"`
	CreatedAt     time.Time   `json:"createdAt"`
	QuestionCount int64       `json:"questionCount"`
	CommentCount  int64       `json:"commentCount"`
}

func userView(u models.User) UserView {
	return UserView{ID: u.ID, Name: u.Name, Image: u.Image}
}

func likeViews(upvotes []models.Upvote) []LikeView {
	out := make([]LikeView, 0, len(upvotes))
	for _, up := range upvotes {
		out = append(out, LikeView{UserID: up.UserID, User: userView(up.User)})
	}
	return out
}

func commentView(c models.Comment) CommentView {
	return CommentView{
		ID:          c.ID,
		QuestionID:  c.QuestionID,
		Content:     c.Content,
		ContentHTML: c.ContentHTML,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Author:      userView(c.Author),
	}
}

func questionDetail(q models.Question) QuestionDetail {
	comments := make([]CommentView, 0, len(q.Comments))
	for _, c := range q.Comments {
		comments = append(comments, commentView(c))
	}
	return QuestionDetail{
		ID:          q.ID,
		Title:       q.Title,
		Content:     q.Content,
		ContentHTML: q.ContentHTML,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
		Hidden:      q.Hidden,
		Author:      userView(q.Author),
		Comments:    comments,
		LikedBy:     likeViews(q.Upvotes),
	}
}
