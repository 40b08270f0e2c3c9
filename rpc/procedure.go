// Package rpc exposes named queries and mutations over HTTP. Queries are served on
// GET /<name>?input=<json>, mutations on POST /<name> with a JSON body.
package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qaforum/qaforum/middleware"
	"github.com/qaforum/qaforum/services"
	"github.com/qaforum/qaforum/utils"
)

// Type tells queries from mutations.
type Type string

const (
	TypeQuery    Type = "query"
	TypeMutation Type = "mutation"
)

// maxInputBytes caps request bodies of mutations.
const maxInputBytes = 1 << 20

// Handler serves one procedure. sess is nil for anonymous callers.
type Handler[In, Out any] func(ctx *gin.Context, sess *services.Session, in In) (Out, error)

// Procedure is a named, typed endpoint.
type Procedure struct {
	Name      string
	Type      Type
	Protected bool
	call      func(ctx *gin.Context) (interface{}, error)
}

// Query declares a read-only procedure. Sessions are optional.
func Query[In, Out any](name string, h Handler[In, Out]) Procedure {
	return build(name, TypeQuery, false, h)
}

// Mutation declares a state changing procedure. Anonymous callers get UNAUTHORIZED
// before the input is looked at.
func Mutation[In, Out any](name string, h Handler[In, Out]) Procedure {
	return build(name, TypeMutation, true, h)
}

func build[In, Out any](name string, typ Type, protected bool, h Handler[In, Out]) Procedure {
	p := Procedure{Name: name, Type: typ, Protected: protected}
	p.call = func(ctx *gin.Context) (interface{}, error) {
		sess := middleware.CurrentSession(ctx)
		if protected && sess == nil {
			return nil, utils.Unauthorized(40100, "you must be signed in")
		}

		raw, err := rawInput(ctx, typ)
		if err != nil {
			return nil, err
		}
		var in In
		if err := decode(raw, &in); err != nil {
			return nil, err
		}
		if err := Validate(in); err != nil {
			return nil, err
		}
		out, err := h(ctx, sess, in)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return p
}

func rawInput(ctx *gin.Context, typ Type) ([]byte, error) {
	if typ == TypeQuery {
		return []byte(ctx.Query("input")), nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxInputBytes))
	if err != nil {
		return nil, utils.BadRequest(40001, "request body too large or unreadable")
	}
	return body, nil
}

// decode fills in from raw JSON. Missing input is treated as an empty object.
func decode(raw []byte, in interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, in); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return utils.BadRequest(40001, "invalid type for field "+typeErr.Field)
		}
		return utils.BadRequest(40001, "invalid input")
	}
	return nil
}
