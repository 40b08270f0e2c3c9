package rpc

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qaforum/qaforum/utils"
)

// Router dispatches /:procedure requests to registered procedures.
type Router struct {
	procedures map[string]Procedure
	logErrors  bool
}

// NewRouter creates an empty router. With logErrors set every failed call is
// logged, not just internal ones.
func NewRouter(logErrors bool) *Router {
	return &Router{procedures: map[string]Procedure{}, logErrors: logErrors}
}

// Register adds procedures under prefix, so "feed" under "question" is served as
// "question.feed". An empty prefix registers at the root.
func (r *Router) Register(prefix string, procs ...Procedure) *Router {
	for _, p := range procs {
		name := p.Name
		if prefix != "" {
			name = prefix + "." + name
		}
		if _, dup := r.procedures[name]; dup {
			panic("rpc: duplicate procedure " + name)
		}
		p.Name = name
		r.procedures[name] = p
	}
	return r
}

// Names lists the registered procedures in sorted order.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.procedures))
	for name := range r.procedures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle is the gin handler for GET and POST /:procedure.
func (r *Router) Handle(ctx *gin.Context) {
	name := ctx.Param("procedure")
	p, ok := r.procedures[name]
	if !ok {
		r.fail(ctx, name, utils.NotFound(40400, "No procedure found on path \""+name+"\""))
		return
	}

	want := http.MethodGet
	if p.Type == TypeMutation {
		want = http.MethodPost
	}
	if ctx.Request.Method != want {
		ctx.Header("Allow", want)
		r.fail(ctx, name, utils.NewError(utils.KindMethodNotSupported, 40500,
			"Unsupported "+ctx.Request.Method+"-request to "+string(p.Type)+" procedure at path \""+name+"\""))
		return
	}

	out, err := p.call(ctx)
	if err != nil {
		r.fail(ctx, name, err)
		return
	}
	utils.Success(ctx, out)
}

func (r *Router) fail(ctx *gin.Context, name string, err error) {
	if r.logErrors {
		appErr := utils.AsAppError(err)
		if appErr.Kind != utils.KindInternal {
			utils.Logger.Info("rpc call failed",
				zap.String("procedure", name),
				zap.String("kind", string(appErr.Kind)),
				zap.String("message", appErr.Message),
			)
		}
	}
	utils.Fail(ctx, err)
}
