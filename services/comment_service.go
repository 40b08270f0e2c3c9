package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/qaforum/qaforum/models"
	"github.com/qaforum/qaforum/utils"
)

// AddCommentInput replies to a question.
type AddCommentInput struct {
	QuestionID  uint   `json:"questionId" validate:"required,min=1"`
	Content     string `json:"content" validate:"required,min=1,max=10000"`
	ContentHTML string `json:"contentHtml"`
}

// EditCommentInput replaces the body of a comment.
type EditCommentInput struct {
	ID          uint   `json:"id" validate:"required,min=1"`
	Content     string `json:"content" validate:"required,min=1,max=10000"`
	ContentHTML string `json:"contentHtml"`
}

// CommentService implements comment procedures.
type CommentService struct {
	db        *gorm.DB
	questions *QuestionService
}

// NewCommentService creates a CommentService. Comment changes invalidate the feed
// cache of questions because feed rows carry comment counts.
func NewCommentService(db *gorm.DB, questions *QuestionService) *CommentService {
	return &CommentService{db: db, questions: questions}
}

// Add creates a comment on a question the caller can see.
func (s *CommentService) Add(ctx context.Context, sess *Session, in AddCommentInput) (*CommentView, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	html, err := utils.RenderContent(in.Content, in.ContentHTML)
	if err != nil {
		return nil, utils.BadRequest(40020, "content could not be rendered")
	}

	c := models.Comment{
		QuestionID:  in.QuestionID,
		AuthorID:    sess.UserID,
		Content:     in.Content,
		ContentHTML: html,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadVisibleQuestion(tx, sess, in.QuestionID); err != nil {
			return err
		}
		if err := tx.Create(&c).Error; err != nil {
			return utils.Internal(50201, "failed to create comment", err)
		}
		if err := tx.Preload("Author").First(&c, c.ID).Error; err != nil {
			return utils.Internal(50205, "failed to load comment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	view := commentView(c)
	return &view, nil
}

// Edit replaces the content of a comment owned by the caller.
func (s *CommentService) Edit(ctx context.Context, sess *Session, in EditCommentInput) (*CommentView, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	html, err := utils.RenderContent(in.Content, in.ContentHTML)
	if err != nil {
		return nil, utils.BadRequest(40020, "content could not be rendered")
	}

	var c *models.Comment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		c, err = loadOwnComment(tx, sess, in.ID, "you can only edit your own comments")
		if err != nil {
			return err
		}
		if err := tx.Model(c).Updates(map[string]interface{}{
			"content":      in.Content,
			"content_html": html,
		}).Error; err != nil {
			return utils.Internal(50202, "failed to update comment", err)
		}
		if err := tx.Preload("Author").First(c, c.ID).Error; err != nil {
			return utils.Internal(50205, "failed to load comment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := commentView(*c)
	return &view, nil
}

// Delete removes a comment owned by the caller.
func (s *CommentService) Delete(ctx context.Context, sess *Session, id uint) (*DeleteResult, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := loadOwnComment(tx, sess, id, "you can only delete your own comments")
		if err != nil {
			return err
		}
		if err := tx.Delete(c).Error; err != nil {
			return utils.Internal(50203, "failed to delete comment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return &DeleteResult{ID: id}, nil
}

func (s *CommentService) invalidate(ctx context.Context) {
	if s.questions != nil {
		s.questions.invalidate(ctx)
	}
}

// loadOwnComment loads a comment whose question the caller can see and checks ownership.
func loadOwnComment(tx *gorm.DB, sess *Session, id uint, forbidden string) (*models.Comment, error) {
	var c models.Comment
	if err := tx.First(&c, id).Error; err != nil {
		if utils.IsNotFound(err) {
			return nil, utils.NotFound(40402, "comment not found")
		}
		return nil, utils.Internal(50204, "failed to load comment", err)
	}
	if _, err := loadVisibleQuestion(tx, sess, c.QuestionID); err != nil {
		if utils.KindOf(err) == utils.KindNotFound {
			return nil, utils.NotFound(40402, "comment not found")
		}
		return nil, err
	}
	if !sess.Owns(c.AuthorID) {
		return nil, utils.Forbidden(40304, forbidden)
	}
	return &c, nil
}
