package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/qaforum/qaforum/rpc"
	"github.com/qaforum/qaforum/services"
)

// UserController exposes the user.* procedures.
type UserController struct {
	users *services.UserService
}

// NewUserController creates a new UserController instance.
func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

// Procedures lists the procedures served under the "user" prefix.
func (u *UserController) Procedures() []rpc.Procedure {
	return []rpc.Procedure{
		rpc.Query("profile", func(ctx *gin.Context, _ *services.Session, in services.IDInput) (*services.Profile, error) {
			return u.users.Profile(ctx.Request.Context(), in.ID)
		}),
		rpc.Mutation("updateProfile", func(ctx *gin.Context, sess *services.Session, in services.UpdateProfileInput) (*services.Session, error) {
			return u.users.UpdateProfile(ctx.Request.Context(), sess, in)
		}),
	}
}

// Healthz is the root liveness procedure.
func Healthz() rpc.Procedure {
	return rpc.Query("healthz", func(*gin.Context, *services.Session, struct{}) (string, error) {
		return "yay!", nil
	})
}
