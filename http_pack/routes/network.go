package routes

import (
	"github.com/playergold/playergold-bootstrap-core/genesis"

	"github.com/valyala/fasthttp"
)

func (h *Handlers) GetNetworkState(ctx *fasthttp.RequestCtx) {

	writeJson(ctx, fasthttp.StatusOK, map[string]any{
		"networkState":      h.NetState.DeriveNetworkState(ctx),
		"allowedOperations": h.NetState.AllowedOperations(ctx),
	})
}

func (h *Handlers) GetNetworkConfig(ctx *fasthttp.RequestCtx) {

	networkConfig, err := genesis.LoadNetworkConfiguration()

	if err != nil {
		writeErr(ctx, fasthttp.StatusInternalServerError, "failed to read network configuration")
		return
	}

	if networkConfig == nil {
		writeErr(ctx, fasthttp.StatusNotFound, "network not formed yet")
		return
	}

	writeJson(ctx, fasthttp.StatusOK, networkConfig)
}

func (h *Handlers) GetGenesis(ctx *fasthttp.RequestCtx) {

	block, err := genesis.LoadGenesisBlock()

	if err != nil {
		writeErr(ctx, fasthttp.StatusInternalServerError, "failed to read genesis block")
		return
	}

	if block == nil {
		writeErr(ctx, fasthttp.StatusNotFound, "network not formed yet")
		return
	}

	writeJson(ctx, fasthttp.StatusOK, block)
}
