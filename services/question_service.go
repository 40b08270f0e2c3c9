package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qaforum/qaforum/models"
	"github.com/qaforum/qaforum/utils"
)

const feedCachePrefix = "cache:question:feed:"

// FeedInput selects one page of the public feed.
type FeedInput struct {
	Take     int   `json:"take" validate:"required,min=1,max=50"`
	Skip     int   `json:"skip" validate:"min=0"`
	AuthorID *uint `json:"authorId" validate:"omitempty,min=1"`
}

// IDInput addresses a single record.
type IDInput struct {
	ID uint `json:"id" validate:"required,min=1"`
}

// SearchInput is a free text query.
type SearchInput struct {
	Query string `json:"query" validate:"required,min=1,max=100"`
}

// AddQuestionInput creates a question. ContentHTML is the editor rendering of Content, if any.
type AddQuestionInput struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Content     string `json:"content" validate:"required,min=1"`
	ContentHTML string `json:"contentHtml"`
}

// QuestionPatch lists the fields an author may change. Nil fields are left alone.
type QuestionPatch struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Content     *string `json:"content" validate:"omitempty,min=1"`
	ContentHTML *string `json:"contentHtml"`
}

// EditQuestionInput edits a question owned by the caller.
type EditQuestionInput struct {
	ID   uint          `json:"id" validate:"required,min=1"`
	Data QuestionPatch `json:"data"`
}

// LikeResult reports the like state of a question after a like or unlike.
type LikeResult struct {
	QuestionID uint  `json:"questionId"`
	Liked      bool  `json:"liked"`
	LikeCount  int64 `json:"likeCount"`
}

// HiddenResult reports the moderation state after hide or unhide.
type HiddenResult struct {
	ID     uint `json:"id"`
	Hidden bool `json:"hidden"`
}

// DeleteResult echoes the id of a removed record.
type DeleteResult struct {
	ID uint `json:"id"`
}

// QuestionService implements the question procedures over the ORM.
type QuestionService struct {
	db      *gorm.DB
	cache   Cache
	feedTTL time.Duration
}

// NewQuestionService creates a QuestionService without caching.
func NewQuestionService(db *gorm.DB) *QuestionService {
	return &QuestionService{db: db}
}

// WithCache enables feed caching for ttl.
func (s *QuestionService) WithCache(c Cache, ttl time.Duration) *QuestionService {
	s.cache = c
	s.feedTTL = ttl
	return s
}

// Feed returns non-hidden questions newest first together with the total for the same filter.
func (s *QuestionService) Feed(ctx context.Context, in FeedInput) (*FeedResult, error) {
	key := feedCacheKey(in)
	if s.cache != nil {
		var cached FeedResult
		if s.cache.GetJSON(ctx, key, &cached) {
			return &cached, nil
		}
	}

	result := &FeedResult{Questions: []QuestionSummary{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		filtered := func() *gorm.DB {
			q := tx.Model(&models.Question{}).Where("hidden = ?", false)
			if in.AuthorID != nil {
				q = q.Where("author_id = ?", *in.AuthorID)
			}
			return q
		}

		if err := filtered().Count(&result.QuestionCount).Error; err != nil {
			return utils.Internal(50101, "failed to count questions", err)
		}

		var rows []models.Question
		if err := filtered().
			Preload("Author").
			Preload("Upvotes", orderByCreated).
			Preload("Upvotes.User").
			Order("created_at DESC, id DESC").
			Offset(in.Skip).
			Limit(in.Take).
			Find(&rows).Error; err != nil {
			return utils.Internal(50102, "failed to list questions", err)
		}

		ids := make([]uint, 0, len(rows))
		for _, q := range rows {
			ids = append(ids, q.ID)
		}
		counts, err := commentCounts(tx, ids)
		if err != nil {
			return err
		}

		for _, q := range rows {
			result.Questions = append(result.Questions, QuestionSummary{
				ID:           q.ID,
				Title:        q.Title,
				ContentHTML:  q.ContentHTML,
				CreatedAt:    q.CreatedAt,
				Hidden:       q.Hidden,
				Author:       userView(q.Author),
				LikedBy:      likeViews(q.Upvotes),
				CommentCount: counts[q.ID],
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetJSON(ctx, key, result, s.feedTTL)
	}
	return result, nil
}

// Detail returns a question with its comments (oldest first) and likes.
// Missing questions and hidden questions the caller may not see are both NOT_FOUND.
func (s *QuestionService) Detail(ctx context.Context, sess *Session, id uint) (*QuestionDetail, error) {
	var q models.Question
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Comments", orderByCreated).
		Preload("Comments.Author").
		Preload("Upvotes", orderByCreated).
		Preload("Upvotes.User").
		First(&q, id).Error
	if err != nil {
		if utils.IsNotFound(err) {
			return nil, questionNotFound(id)
		}
		return nil, utils.Internal(50103, "failed to load question", err)
	}
	if !sess.CanView(&q) {
		return nil, questionNotFound(id)
	}
	detail := questionDetail(q)
	return &detail, nil
}

// Search matches title or content case-insensitively among non-hidden questions, at most 10 hits.
func (s *QuestionService) Search(ctx context.Context, query string) ([]SearchHit, error) {
	term := strings.ToLower(utils.NormalizeText(query))
	if term == "" {
		return nil, utils.BadRequest(40010, "query cannot be empty")
	}
	pattern := "%" + escapeLike(term) + "%"

	var rows []models.Question
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("hidden = ?", false).
		Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(content) LIKE ? ESCAPE '!')", pattern, pattern).
		Order("created_at DESC, id DESC").
		Limit(10).
		Find(&rows).Error
	if err != nil {
		return nil, utils.Internal(50104, "failed to search questions", err)
	}

	hits := make([]SearchHit, 0, len(rows))
	for _, q := range rows {
		hits = append(hits, SearchHit{ID: q.ID, Title: q.Title, CreatedAt: q.CreatedAt, Author: userView(q.Author)})
	}
	return hits, nil
}

// Stats reports views, comments and likes of a question visible to the caller.
func (s *QuestionService) Stats(ctx context.Context, sess *Session, id uint) (*QuestionStats, error) {
	stats := &QuestionStats{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadVisibleQuestion(tx, sess, id); err != nil {
			return err
		}
		if err := tx.Model(&models.Comment{}).Where("question_id = ?", id).Count(&stats.Comments).Error; err != nil {
			return utils.Internal(50105, "failed to count comments", err)
		}
		if err := tx.Model(&models.Upvote{}).Where("question_id = ?", id).Count(&stats.Likes).Error; err != nil {
			return utils.Internal(50106, "failed to count likes", err)
		}
		if err := tx.Model(&models.PageView{}).
			Where("path = ?", models.QuestionViewPath(id)).
			Select("COALESCE(SUM(count), 0)").
			Scan(&stats.Views).Error; err != nil {
			return utils.Internal(50107, "failed to sum views", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Add creates a question owned by the caller.
func (s *QuestionService) Add(ctx context.Context, sess *Session, in AddQuestionInput) (*QuestionDetail, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	title := utils.NormalizeText(in.Title)
	if title == "" {
		return nil, utils.BadRequest(40011, "title cannot be empty")
	}
	html, err := utils.RenderContent(in.Content, in.ContentHTML)
	if err != nil {
		return nil, utils.BadRequest(40012, "content could not be rendered")
	}

	q := models.Question{
		Title:       title,
		Content:     in.Content,
		ContentHTML: html,
		AuthorID:    sess.UserID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&q).Error; err != nil {
			return utils.Internal(50110, "failed to create question", err)
		}
		if err := tx.Preload("Author").First(&q, q.ID).Error; err != nil {
			return utils.Internal(50111, "failed to load question", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	detail := questionDetail(q)
	return &detail, nil
}

// Edit changes title and/or content of a question owned by the caller. The author never changes.
func (s *QuestionService) Edit(ctx context.Context, sess *Session, in EditQuestionInput) (*QuestionDetail, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	var q *models.Question
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		q, err = loadVisibleQuestion(tx, sess, in.ID)
		if err != nil {
			return err
		}
		if !sess.Owns(q.AuthorID) {
			return utils.Forbidden(40301, "you can only edit your own questions")
		}

		updates := map[string]interface{}{}
		if in.Data.Title != nil {
			title := utils.NormalizeText(*in.Data.Title)
			if title == "" {
				return utils.BadRequest(40013, "title cannot be empty")
			}
			updates["title"] = title
		}
		if in.Data.Content != nil || in.Data.ContentHTML != nil {
			content := q.Content
			if in.Data.Content != nil {
				content = *in.Data.Content
			}
			contentHTML := ""
			if in.Data.ContentHTML != nil {
				contentHTML = *in.Data.ContentHTML
			}
			html, err := utils.RenderContent(content, contentHTML)
			if err != nil {
				return utils.BadRequest(40012, "content could not be rendered")
			}
			updates["content"] = content
			updates["content_html"] = html
		}
		if len(updates) > 0 {
			if err := tx.Model(q).Updates(updates).Error; err != nil {
				return utils.Internal(50112, "failed to update question", err)
			}
		}
		if err := tx.Preload("Author").
			Preload("Comments", orderByCreated).
			Preload("Comments.Author").
			Preload("Upvotes", orderByCreated).
			Preload("Upvotes.User").
			First(q, q.ID).Error; err != nil {
			return utils.Internal(50111, "failed to load question", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	detail := questionDetail(*q)
	return &detail, nil
}

// Delete removes a question owned by the caller together with its comments and likes.
func (s *QuestionService) Delete(ctx context.Context, sess *Session, id uint) (*DeleteResult, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := loadVisibleQuestion(tx, sess, id)
		if err != nil {
			return err
		}
		if !sess.Owns(q.AuthorID) {
			return utils.Forbidden(40302, "you can only delete your own questions")
		}
		if err := tx.Where("question_id = ?", id).Delete(&models.Upvote{}).Error; err != nil {
			return utils.Internal(50113, "failed to delete likes", err)
		}
		if err := tx.Where("question_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return utils.Internal(50114, "failed to delete comments", err)
		}
		if err := tx.Delete(q).Error; err != nil {
			return utils.Internal(50115, "failed to delete question", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return &DeleteResult{ID: id}, nil
}

// Like records the caller's like. A second like violates the (question, user) key
// and fails as a storage error; there is deliberately no check before the insert.
func (s *QuestionService) Like(ctx context.Context, sess *Session, id uint) (*LikeResult, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	res := &LikeResult{QuestionID: id, Liked: true}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadVisibleQuestion(tx, sess, id); err != nil {
			return err
		}
		if err := tx.Create(&models.Upvote{QuestionID: id, UserID: sess.UserID}).Error; err != nil {
			if utils.IsDuplicateKey(err) {
				utils.Sugar.Debugf("duplicate like question=%d user=%d", id, sess.UserID)
			}
			return utils.Internal(50116, "failed to like question", err)
		}
		return countLikes(tx, id, &res.LikeCount)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return res, nil
}

// Unlike removes the caller's like; it fails when there is none.
func (s *QuestionService) Unlike(ctx context.Context, sess *Session, id uint) (*LikeResult, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	res := &LikeResult{QuestionID: id, Liked: false}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadVisibleQuestion(tx, sess, id); err != nil {
			return err
		}
		del := tx.Where("question_id = ? AND user_id = ?", id, sess.UserID).Delete(&models.Upvote{})
		if del.Error != nil {
			return utils.Internal(50117, "failed to unlike question", del.Error)
		}
		if del.RowsAffected == 0 {
			return utils.NotFound(40410, "like not found")
		}
		return countLikes(tx, id, &res.LikeCount)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return res, nil
}

// SetHidden hides or unhides a question. Only moderators and admins may do this.
func (s *QuestionService) SetHidden(ctx context.Context, sess *Session, id uint, hidden bool) (*HiddenResult, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !sess.Privileged() {
		return nil, utils.Forbidden(40303, "only moderators can change question visibility")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := loadVisibleQuestion(tx, sess, id)
		if err != nil {
			return err
		}
		if err := tx.Model(q).Update("hidden", hidden).Error; err != nil {
			return utils.Internal(50118, "failed to update question visibility", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return &HiddenResult{ID: id, Hidden: hidden}, nil
}

func (s *QuestionService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidatePrefix(ctx, feedCachePrefix)
	}
}

func feedCacheKey(in FeedInput) string {
	author := uint(0)
	if in.AuthorID != nil {
		author = *in.AuthorID
	}
	return fmt.Sprintf("%stake=%d:skip=%d:author=%d", feedCachePrefix, in.Take, in.Skip, author)
}

// loadVisibleQuestion loads a question inside tx, answering NOT_FOUND when it is
// missing or hidden from the caller.
func loadVisibleQuestion(tx *gorm.DB, sess *Session, id uint) (*models.Question, error) {
	var q models.Question
	if err := tx.First(&q, id).Error; err != nil {
		if utils.IsNotFound(err) {
			return nil, questionNotFound(id)
		}
		return nil, utils.Internal(50103, "failed to load question", err)
	}
	if !sess.CanView(&q) {
		return nil, questionNotFound(id)
	}
	return &q, nil
}

func commentCounts(tx *gorm.DB, ids []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	var rows []struct {
		QuestionID uint
		N          int64
	}
	if err := tx.Model(&models.Comment{}).
		Select("question_id, COUNT(*) AS n").
		Where("question_id IN ?", ids).
		Group("question_id").
		Scan(&rows).Error; err != nil {
		return nil, utils.Internal(50105, "failed to count comments", err)
	}
	for _, r := range rows {
		counts[r.QuestionID] = r.N
	}
	return counts, nil
}

func countLikes(tx *gorm.DB, id uint, out *int64) error {
	if err := tx.Model(&models.Upvote{}).Where("question_id = ?", id).Count(out).Error; err != nil {
		return utils.Internal(50106, "failed to count likes", err)
	}
	return nil
}

func orderByCreated(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

func requireSession(sess *Session) error {
	if sess == nil {
		return utils.Unauthorized(40100, "you must be signed in")
	}
	return nil
}

func questionNotFound(id uint) error {
	return utils.NotFound(40401, fmt.Sprintf("No question with id '%d'", id))
}

// escapeLike escapes LIKE wildcards using '!' which every supported dialect accepts.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
