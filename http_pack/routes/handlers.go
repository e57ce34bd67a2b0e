package routes

import (
	"encoding/json"

	"github.com/playergold/playergold-bootstrap-core/directory"
	"github.com/playergold/playergold-bootstrap-core/netstate"
	"github.com/playergold/playergold-bootstrap-core/orchestrator"
	"github.com/playergold/playergold-bootstrap-core/structures"

	"github.com/valyala/fasthttp"
)

// Handlers carries the services the local API exposes. Directory may be nil
// when no directory endpoints are configured.
type Handlers struct {
	Config *structures.NodeLevelConfig

	Orchestrator *orchestrator.Orchestrator

	NetState *netstate.Manager

	Directory *directory.Client
}

func writeJson(ctx *fasthttp.RequestCtx, statusCode int, payload any) {

	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")

	ctx.SetContentType("application/json")

	raw, err := json.Marshal(payload)

	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.Write([]byte(`{"err": "internal"}`))
		return
	}

	ctx.SetStatusCode(statusCode)

	ctx.Write(raw)
}

func writeErr(ctx *fasthttp.RequestCtx, statusCode int, message string) {

	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")

	ctx.SetContentType("application/json")

	ctx.SetStatusCode(statusCode)

	raw, _ := json.Marshal(map[string]string{"err": message})

	ctx.Write(raw)
}

// writeBootstrapErr maps a typed bootstrap error onto the wire: the kind for
// programmatic callers plus the non-technical user message. The technical
// detail stays in the operator log only.
func writeBootstrapErr(ctx *fasthttp.RequestCtx, statusCode int, err error) {

	writeJson(ctx, statusCode, map[string]string{
		"err":         string(structures.KindOf(err)),
		"userMessage": structures.UserMessageOf(err),
	})
}
