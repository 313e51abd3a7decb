// Package private maintains the group of handlers for callers holding the
// node's shared secret.
package private

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ardanlabs/powchain/business/sys/metrics"
	"github.com/ardanlabs/powchain/business/sys/validate"
	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of protected node endpoints.
type Handlers struct {
	Log         *zap.SugaredLogger
	State       *state.State
	PruneRetain int
}

// Mine solves and commits a block holding the data carried as a JSON string
// in the body.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var data string
	if err := web.Decode(r, &data); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := database.ValidatePayload(data); err != nil {
		metrics.ObserveRejected(metrics.ReasonPayload)
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	start := time.Now()

	block, err := h.State.MineNewBlock(data)
	switch {
	case err == nil:
		metrics.ObserveMined(start)
		metrics.SetChainLength(h.State.RetrieveSummary().Length)

	case errors.Is(err, state.ErrTipAdvanced):
		return errs.NewTrusted(err, http.StatusServiceUnavailable)

	default:
		h.Log.Infow("mine", "traceid", web.GetTraceID(ctx), "status", "block rejected", "ERROR", err)
		metrics.ObserveRejected(metrics.Reason(err, map[string]error{
			metrics.ReasonLink: database.ErrLinkMismatch,
			metrics.ReasonPoW:  database.ErrProofOfWorkInvalid,
		}))
		return web.Respond(ctx, w, mined{Added: false}, http.StatusOK)
	}

	resp := mined{
		Added: true,
		Hash:  block.Hash,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Prune keeps the configured number of recent blocks.
func (h Handlers) Prune(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	before, after := h.State.Prune(h.PruneRetain)
	metrics.SetChainLength(after)

	resp := pruned{
		From: before,
		To:   after,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ReplaceChain adopts the posted chain when it is longer than the local one.
func (h Handlers) ReplaceChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req replaceChain
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	replaced, err := h.State.ReplaceChain(req.Blocks)
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotAcceptable)
	}

	if replaced {
		metrics.SetChainLength(len(req.Blocks))
	}

	return web.Respond(ctx, w, replacedChain{Replaced: replaced}, http.StatusOK)
}
