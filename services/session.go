package services

import (
	"context"
	"time"

	"github.com/qaforum/qaforum/models"
)

// Session is the authenticated caller of a request. A nil *Session is an anonymous caller.
type Session struct {
	UserID uint        `json:"id"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Image  string      `json:"image"`
	Role   models.Role `json:"role"`
}

// SessionFromUser builds a session from a freshly loaded user row.
func SessionFromUser(u *models.User) *Session {
	return &Session{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Image:  u.Image,
		Role:   u.Role,
	}
}

// Privileged reports whether the caller may see and moderate hidden content.
func (s *Session) Privileged() bool {
	return s != nil && s.Role.Privileged()
}

// Owns reports whether the caller is the user with the given id.
func (s *Session) Owns(authorID uint) bool {
	return s != nil && s.UserID == authorID
}

// CanView applies the visibility rule for questions.
func (s *Session) CanView(q *models.Question) bool {
	return !q.Hidden || s.Owns(q.AuthorID) || s.Privileged()
}

// Cache is an optional read-through store for feed pages.
type Cache interface {
	GetJSON(ctx context.Context, key string, out interface{}) bool
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration)
	InvalidatePrefix(ctx context.Context, prefix string)
}
