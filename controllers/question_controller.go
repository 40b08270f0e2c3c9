package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/qaforum/qaforum/middleware"
	"github.com/qaforum/qaforum/models"
	"github.com/qaforum/qaforum/rpc"
	"github.com/qaforum/qaforum/services"
)

// QuestionController exposes the question.* procedures.
type QuestionController struct {
	questions *services.QuestionService
}

// NewQuestionController creates a new QuestionController instance.
func NewQuestionController(questions *services.QuestionService) *QuestionController {
	return &QuestionController{questions: questions}
}

// Procedures lists the procedures served under the "question" prefix.
func (q *QuestionController) Procedures() []rpc.Procedure {
	return []rpc.Procedure{
		rpc.Query("feed", q.feed),
		rpc.Query("detail", q.detail),
		rpc.Query("search", q.search),
		rpc.Query("stats", q.stats),
		rpc.Mutation("add", q.add),
		rpc.Mutation("edit", q.edit),
		rpc.Mutation("delete", q.delete),
		rpc.Mutation("like", q.like),
		rpc.Mutation("unlike", q.unlike),
		rpc.Mutation("hide", q.hide),
		rpc.Mutation("unhide", q.unhide),
	}
}

func (q *QuestionController) feed(ctx *gin.Context, _ *services.Session, in services.FeedInput) (*services.FeedResult, error) {
	return q.questions.Feed(ctx.Request.Context(), in)
}

// detail also counts a view of the question once it has been served.
func (q *QuestionController) detail(ctx *gin.Context, sess *services.Session, in services.IDInput) (*services.QuestionDetail, error) {
	detail, err := q.questions.Detail(ctx.Request.Context(), sess, in.ID)
	if err != nil {
		return nil, err
	}
	ctx.Set(middleware.ContextViewKey, models.QuestionViewPath(in.ID))
	return detail, nil
}

func (q *QuestionController) search(ctx *gin.Context, _ *services.Session, in services.SearchInput) ([]services.SearchHit, error) {
	return q.questions.Search(ctx.Request.Context(), in.Query)
}

func (q *QuestionController) stats(ctx *gin.Context, sess *services.Session, in services.IDInput) (*services.QuestionStats, error) {
	return q.questions.Stats(ctx.Request.Context(), sess, in.ID)
}

func (q *QuestionController) add(ctx *gin.Context, sess *services.Session, in services.AddQuestionInput) (*services.QuestionDetail, error) {
	return q.questions.Add(ctx.Request.Context(), sess, in)
}

func (q *QuestionController) edit(ctx *gin.Context, sess *services.Session, in services.EditQuestionInput) (*services.QuestionDetail, error) {
	return q.questions.Edit(ctx.Request.Context(), sess, in)
}

func (q *QuestionController) delete(ctx *gin.Context, sess *services.Session, in services.IDInput) (*services.DeleteResult, error) {
	return q.questions.Delete(ctx.Request.Context(), sess, in.ID)
}

func (q *QuestionController) like(ctx *gin.Context, sess *services.Session, in services.IDInput) (*services.LikeResult, error) {
	return q.questions.Like(ctx.Request.Context(), sess, in.ID)
}

func (q *QuestionController) unlike(ctx *gin.Context, sess *services.Session, in services.IDInput) (*services.LikeResult, error) {
	return q.questions.Unlike(ctx.Request.Context(), sess, in.ID)
}

func (q *QuestionController) hide(ctx *gin.Context, sess *services.Session, in services.IDInput) (*services.HiddenResult, error) {
	return q.questions.SetHidden(ctx.Request.Context(), sess, in.ID, true)
}

func (q *QuestionController) unhide(ctx *gin.Context, sess *services.Session, in services.IDInput) (*services.HiddenResult, error) {
	return q.questions.SetHidden(ctx.Request.Context(), sess, in.ID, false)
}
