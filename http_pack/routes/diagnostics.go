package routes

import (
	"github.com/playergold/playergold-bootstrap-core/structures"
	"github.com/playergold/playergold-bootstrap-core/utils"

	"github.com/valyala/fasthttp"
)

const RECENT_ATTEMPTS_IN_RESPONSE = 20

func (h *Handlers) GetAttemptsStats(ctx *fasthttp.RequestCtx) {

	attempts := utils.ReadRecentConnectionAttempts(utils.CONNECTION_ATTEMPTS_WINDOW)

	recent := attempts

	if len(recent) > RECENT_ATTEMPTS_IN_RESPONSE {
		recent = recent[len(recent)-RECENT_ATTEMPTS_IN_RESPONSE:]
	}

	writeJson(ctx, fasthttp.StatusOK, map[string]any{
		"stats":  structures.BuildConnectionAttemptStats(attempts),
		"recent": recent,
	})
}

// GetDirectoryStats proxies the remote directory statistics. 503 whenever the
// directory is not configured or not answering: the caller must be able to
// tell "no data" apart from "zero nodes".
func (h *Handlers) GetDirectoryStats(ctx *fasthttp.RequestCtx) {

	if h.Directory == nil {
		writeErr(ctx, fasthttp.StatusServiceUnavailable, "no directory configured")
		return
	}

	stats, err := h.Directory.FetchStats(ctx)

	if err != nil {
		writeErr(ctx, fasthttp.StatusServiceUnavailable, "directory unreachable")
		return
	}

	writeJson(ctx, fasthttp.StatusOK, stats)
}
