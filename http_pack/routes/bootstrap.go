package routes

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

func (h *Handlers) GetBootstrapState(ctx *fasthttp.RequestCtx) {

	writeJson(ctx, fasthttp.StatusOK, h.Orchestrator.GetStateSnapshot())
}

type walletCreatedRequest struct {
	WalletAddress string `json:"walletAddress"`
}

// PostWalletCreated feeds the wallet-side input of the bootstrap machine.
func (h *Handlers) PostWalletCreated(ctx *fasthttp.RequestCtx) {

	var req walletCreatedRequest

	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeErr(ctx, fasthttp.StatusBadRequest, "invalid payload")
		return
	}

	if err := h.Orchestrator.OnWalletAddressCreated(req.WalletAddress); err != nil {
		writeBootstrapErr(ctx, fasthttp.StatusBadRequest, err)
		return
	}

	writeJson(ctx, fasthttp.StatusOK, map[string]string{"status": "OK"})
}

type miningReadyRequest struct {
	AssetRef string            `json:"assetRef"`
	Metadata map[string]string `json:"metadata"`
}

// PostMiningReady feeds the mining-side input of the bootstrap machine.
func (h *Handlers) PostMiningReady(ctx *fasthttp.RequestCtx) {

	var req miningReadyRequest

	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeErr(ctx, fasthttp.StatusBadRequest, "invalid payload")
		return
	}

	if err := h.Orchestrator.OnMiningReadiness(req.AssetRef, req.Metadata); err != nil {
		writeBootstrapErr(ctx, fasthttp.StatusBadRequest, err)
		return
	}

	writeJson(ctx, fasthttp.StatusOK, map[string]string{"status": "OK"})
}

func (h *Handlers) PostBootstrapReset(ctx *fasthttp.RequestCtx) {

	snapshot := h.Orchestrator.Reset()

	writeJson(ctx, fasthttp.StatusOK, snapshot)
}
