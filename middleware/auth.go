package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qaforum/qaforum/services"
	"github.com/qaforum/qaforum/utils"
)

const (
	// ContextSessionKey stores the *services.Session of the caller in Gin context.
	ContextSessionKey = "session"
	// ContextTokenKey stores the raw bearer token.
	ContextTokenKey = "token"
	// ContextClaimsKey stores the parsed token claims.
	ContextClaimsKey = "claims"
)

// SessionLoader resolves a user id from a token into a fresh session.
type SessionLoader interface {
	SessionFor(ctx context.Context, userID uint) (*services.Session, error)
}

// Session resolves the bearer token, if any, into a session. Requests without an
// Authorization header continue anonymously; a header that does not yield a valid
// session is rejected.
func Session(loader SessionLoader) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			ctx.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			ctx.Abort()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			ctx.Abort()
			return
		}

		if utils.IsTokenRevoked(ctx.Request.Context(), tokenString) {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		sess, err := loader.SessionFor(ctx.Request.Context(), claims.UserID)
		if err != nil {
			utils.Fail(ctx, err)
			ctx.Abort()
			return
		}

		ctx.Set(ContextSessionKey, sess)
		ctx.Set(ContextTokenKey, tokenString)
		ctx.Set(ContextClaimsKey, claims)
		ctx.Next()
	}
}

// AuthRequired rejects anonymous callers. It must run after Session.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if CurrentSession(ctx) == nil {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization required")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// CurrentSession returns the caller's session, or nil for anonymous callers.
func CurrentSession(ctx *gin.Context) *services.Session {
	v, ok := ctx.Get(ContextSessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*services.Session)
	return sess
}

// CurrentToken returns the bearer token and its claims for an authenticated request.
func CurrentToken(ctx *gin.Context) (string, *utils.Claims, bool) {
	token := ctx.GetString(ContextTokenKey)
	v, ok := ctx.Get(ContextClaimsKey)
	if !ok || token == "" {
		return "", nil, false
	}
	claims, ok := v.(*utils.Claims)
	return token, claims, ok
}
