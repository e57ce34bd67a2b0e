package routes

import (
	"github.com/playergold/playergold-bootstrap-core/globals"
	"github.com/playergold/playergold-bootstrap-core/utils"

	"github.com/valyala/fasthttp"
)

func (h *Handlers) GetHealth(ctx *fasthttp.RequestCtx) {

	snapshot := h.Orchestrator.GetStateSnapshot()

	writeJson(ctx, fasthttp.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   globals.CORE_VERSION,
		"mode":      snapshot.Mode,
		"timestamp": utils.GetUTCTimestampInMilliSeconds(),
	})
}
