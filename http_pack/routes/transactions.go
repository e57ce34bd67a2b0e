package routes

import (
	"github.com/playergold/playergold-bootstrap-core/netstate"

	"github.com/valyala/fasthttp"
)

// PostSendTransaction is gated on the derived network state. Until the
// network is active the caller gets the structured formation requirement, not
// an error string and never fabricated chain data. Once active, relaying is
// the chain layer's job, which this node does not carry.
func (h *Handlers) PostSendTransaction(ctx *fasthttp.RequestCtx) {

	requirement := h.NetState.CheckOperation(ctx, netstate.OP_SEND_TRANSACTION)

	if !requirement.Allowed {
		writeJson(ctx, fasthttp.StatusForbidden, requirement)
		return
	}

	writeErr(ctx, fasthttp.StatusNotImplemented, "transaction relay is handled by the chain layer")
}
