// Package gossip implements best effort, at-most-once delivery of blocks and
// peer announcements to the known peers of a node.
package gossip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"go.uber.org/ratelimit"
)

// Kinds of messages sent to peers, used when reporting results.
const (
	KindBlock = "block"
	KindPeer  = "peer"
)

// Default values used when the configuration leaves them empty.
const (
	DefaultTimeout = 5 * time.Second
	DefaultRPS     = 100
)

// EventHandler defines a function that is called when events
// occur in the processing of gossip.
type EventHandler func(v string, args ...any)

// ResultHandler is called once per peer delivery attempt.
type ResultHandler func(kind string, host string, err error)

// Config represents the configuration for the HTTP gossiper.
type Config struct {
	Client    *http.Client
	Timeout   time.Duration
	RPS       int
	EvHandler EventHandler
	OnResult  ResultHandler
}

// HTTP delivers gossip over HTTP. Every delivery runs in its own goroutine
// with its own timeout and is never retried.
type HTTP struct {
	client    *http.Client
	timeout   time.Duration
	limiter   ratelimit.Limiter
	evHandler EventHandler
	onResult  ResultHandler
	wg        sync.WaitGroup
}

// New constructs an HTTP gossiper.
func New(cfg Config) *HTTP {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rps := cfg.RPS
	if rps <= 0 {
		rps = DefaultRPS
	}

	return &HTTP{
		client:    client,
		timeout:   timeout,
		limiter:   ratelimit.New(rps),
		evHandler: ev,
		onResult:  cfg.OnResult,
	}
}

// BroadcastBlock sends the block to every specified peer. It returns
// immediately, delivery happens in the background.
func (g *HTTP) BroadcastBlock(block database.Block, to []peer.Peer) {
	g.evHandler("gossip: BroadcastBlock: blk[%d]: hash[%s]: peers[%d]", block.Index, block.Hash, len(to))

	for _, pr := range to {
		g.deliver(KindBlock, pr, pr.URL("/block"), block)
	}
}

// AnnouncePeer tells every specified peer about the new peer. The new peer
// itself is skipped. It returns immediately.
func (g *HTTP) AnnouncePeer(newPeer peer.Peer, to []peer.Peer) {
	g.evHandler("gossip: AnnouncePeer: peer[%s]: peers[%d]", newPeer.Host, len(to))

	for _, pr := range to {
		if pr == newPeer {
			continue
		}
		g.deliver(KindPeer, pr, pr.URL("/add_peer"), newPeer.Host)
	}
}

// Wait blocks until every in flight delivery has completed.
func (g *HTTP) Wait() {
	g.wg.Wait()
}

// deliver performs one send in the background and reports the outcome.
func (g *HTTP) deliver(kind string, pr peer.Peer, url string, dataSend any) {
	g.wg.Add(1)

	go func() {
		defer g.wg.Done()

		g.limiter.Take()

		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()

		err := send(ctx, g.client, http.MethodPost, url, dataSend)
		switch err {
		case nil:
			g.evHandler("gossip: deliver: %s: sent to peer[%s]", kind, pr.Host)
		default:
			g.evHandler("gossip: deliver: %s: peer[%s]: WARNING: %s", kind, pr.Host, err)
		}

		if g.onResult != nil {
			g.onResult(kind, pr.Host, err)
		}
	}()
}

// =============================================================================

// send is a helper function to send an HTTP request to a node.
func send(ctx context.Context, client *http.Client, method string, url string, dataSend any) error {
	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	}

	msg, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return err
	}

	return fmt.Errorf("status %d: %w", resp.StatusCode, errors.New(string(bytes.TrimSpace(msg))))
}
