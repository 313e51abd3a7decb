// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ardanlabs/powchain/business/sys/admission"
	"github.com/ardanlabs/powchain/business/sys/metrics"
	"github.com/ardanlabs/powchain/business/sys/validate"
	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log       *zap.SugaredLogger
	State     *state.State
	Admission *admission.Controller
	WS        websocket.Upgrader
	Evts      *events.Events
}

// Status returns the index and hash of the tip.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tip := h.State.RetrieveTip()

	resp := status{
		Index: tip.Index,
		Hash:  tip.Hash,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Tip returns the latest block.
func (h Handlers) Tip(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveTip(), http.StatusOK)
}

// Peers returns the known peers.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, peer.Hosts(h.State.RetrieveKnownPeers()), http.StatusOK)
}

// AddPeer registers the endpoint carried as a JSON string in the body.
func (h Handlers) AddPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var host string
	if err := web.Decode(r, &host); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	req := addPeer{Host: host}
	if err := validate.Check(req); err != nil {
		return err
	}

	resp := added{
		Added: h.State.RegisterPeer(req.Host),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ChainSummary returns the length and tip of the chain.
func (h Handlers) ChainSummary(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveSummary(), http.StatusOK)
}

// Chain returns every block of the chain.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := chain{
		Blocks: h.State.RetrieveChain(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Block returns the block with the specified hash. The optional contains
// query parameter filters on the block's data.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")
	contains := r.URL.Query().Get("contains")

	block, err := h.State.QueryBlock(hash, contains)
	if err != nil {
		if errors.Is(err, state.ErrBlockNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// ReceiveBlock accepts a block gossiped by a peer.
func (h Handlers) ReceiveBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var block database.Block
	if err := web.Decode(r, &block); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := h.State.ProcessPeerBlock(block); err != nil {
		metrics.ObserveRejected(metrics.Reason(err, map[string]error{
			metrics.ReasonLink: database.ErrLinkMismatch,
			metrics.ReasonPoW:  database.ErrProofOfWorkInvalid,
		}))
		return errs.NewTrusted(err, http.StatusNotAcceptable)
	}

	metrics.SetChainLength(h.State.RetrieveSummary().Length)

	return web.Respond(ctx, w, added{Added: true}, http.StatusOK)
}

// Health reports the node is up.
func (h Handlers) Health(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, health{Status: "ok"}, http.StatusOK)
}

// HealthRedis reports whether the primary admission store answers.
func (h Handlers) HealthRedis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := h.Admission.Healthy(ctx2); err != nil {
		h.Log.Infow("health redis", "traceid", web.GetTraceID(ctx), "ERROR", err)
		return web.Respond(ctx, w, redisHealth{Redis: "unreachable"}, http.StatusServiceUnavailable)
	}

	return web.Respond(ctx, w, redisHealth{Redis: "ok"}, http.StatusOK)
}

// Events handles a web socket to provide events to a client. The optional
// prefix query parameter limits the stream to matching events.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID, r.URL.Query().Get("prefix"))
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
