package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/qaforum/qaforum/rpc"
	"github.com/qaforum/qaforum/services"
)

// CommentController exposes the comment.* procedures.
type CommentController struct {
	comments *services.CommentService
}

// NewCommentController creates a new CommentController instance.
func NewCommentController(comments *services.CommentService) *CommentController {
	return &CommentController{comments: comments}
}

// Procedures lists the procedures served under the "comment" prefix.
func (c *CommentController) Procedures() []rpc.Procedure {
	return []rpc.Procedure{
		rpc.Mutation("add", func(ctx *gin.Context, sess *services.Session, in services.AddCommentInput) (*services.CommentView, error) {
			return c.comments.Add(ctx.Request.Context(), sess, in)
		}),
		rpc.Mutation("edit", func(ctx *gin.Context, sess *services.Session, in services.EditCommentInput) (*services.CommentView, error) {
			return c.comments.Edit(ctx.Request.Context(), sess, in)
		}),
		rpc.Mutation("delete", func(ctx *gin.Context, sess *services.Session, in services.IDInput) (*services.DeleteResult, error) {
			return c.comments.Delete(ctx.Request.Context(), sess, in.ID)
		}),
	}
}
