// Package worker implements the background snapshotting of the blockchain
// to storage.
package worker

import (
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// DefaultInterval represents the interval between snapshots when the
// configuration leaves it empty.
const DefaultInterval = 10 * time.Second

// Snapshotter interface represents the behavior required to persist the
// blocks of the chain.
type Snapshotter interface {
	SaveChain(blocks []database.Block) error
}

// ResultHandler is called after every snapshot attempt.
type ResultHandler func(length int, err error)

// Config represents the configuration for the snapshot worker.
type Config struct {
	State     *state.State
	Storage   Snapshotter
	Interval  time.Duration
	EvHandler state.EventHandler
	OnResult  ResultHandler
}

// Worker manages the snapshot workflow for the blockchain.
type Worker struct {
	state     *state.State
	storage   Snapshotter
	ticker    *time.Ticker
	shut      chan struct{}
	wg        sync.WaitGroup
	evHandler state.EventHandler
	onResult  ResultHandler
	once      sync.Once
}

// Run creates a worker and starts up the background snapshot goroutine.
func Run(cfg Config) *Worker {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	w := Worker{
		state:     cfg.State,
		storage:   cfg.Storage,
		ticker:    time.NewTicker(interval),
		shut:      make(chan struct{}),
		evHandler: ev,
		onResult:  cfg.OnResult,
	}

	// We don't want to return until we know the G is up and running.
	hasStarted := make(chan bool)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		hasStarted <- true
		w.snapshotOperations()
	}()
	<-hasStarted

	return &w
}

// Shutdown terminates the goroutine performing work and writes one final
// snapshot so nothing committed since the last tick is lost.
func (w *Worker) Shutdown() {
	w.once.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: stop ticker")
		w.ticker.Stop()

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()

		w.evHandler("worker: shutdown: final snapshot")
		w.Snapshot()
	})
}

// Snapshot copies the chain under the read lock and writes it to storage.
// Failures are reported and otherwise ignored.
func (w *Worker) Snapshot() {
	blocks := w.state.RetrieveChain()

	err := w.storage.SaveChain(blocks)
	switch err {
	case nil:
		w.evHandler("worker: Snapshot: saved: length[%d]", len(blocks))
	default:
		w.evHandler("worker: Snapshot: WARNING: %s", err)
	}

	if w.onResult != nil {
		w.onResult(len(blocks), err)
	}
}

// =============================================================================

// snapshotOperations handles writing snapshots on every tick.
func (w *Worker) snapshotOperations() {
	w.evHandler("worker: snapshotOperations: G started")
	defer w.evHandler("worker: snapshotOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.Snapshot()
			}
		case <-w.shut:
			w.evHandler("worker: snapshotOperations: received shut signal")
			return
		}
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
