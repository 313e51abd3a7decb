package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/powchain/app/services/node/handlers"
	"github.com/ardanlabs/powchain/business/sys/admission"
	"github.com/ardanlabs/powchain/business/sys/metrics"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/gossip"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage/bolt"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/powchain/foundation/blockchain/worker"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/logger"
	"github.com/ardanlabs/conf/v3"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10m"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Auth struct {
			APIKey string `conf:"default:secretkey,mask"`
		}
		Rate struct {
			RedisURL       string        `conf:"default:redis://127.0.0.1:6379/0"`
			RedisTimeout   time.Duration `conf:"default:500ms"`
			Window         time.Duration `conf:"default:60s"`
			Limit          int64         `conf:"default:10"`
			FallbackWindow time.Duration `conf:"default:60s"`
			FallbackLimit  int64         `conf:"default:10"`
		}
		State struct {
			Backend          string        `conf:"default:disk"`
			DataDir          string        `conf:"default:zblock/"`
			SnapshotInterval time.Duration `conf:"default:10s"`
			PruneRetain      int           `conf:"default:100"`
			VerifyOnAdopt    bool          `conf:"default:true"`
			StrictLoad       bool          `conf:"default:false"`
		}
		Peers struct {
			KnownPeers    []string
			IdentityURL   string        `conf:"default:https://api.ipify.org"`
			SelfPort      string
			GossipTimeout time.Duration `conf:"default:5s"`
			GossipRPS     int           `conf:"default:100"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work chain node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// =========================================================================
	// Storage Support

	strg, err := openStorage(cfg.State.Backend, cfg.State.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		log.Infow("shutdown", "status", "closing storage")
		strg.Close()
	}()

	blocks, err := loadChain(log, strg, cfg.State.VerifyOnAdopt, cfg.State.StrictLoad)
	if err != nil {
		return err
	}

	storedPeers, err := strg.LoadPeers()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Warnw("startup", "status", "unable to load peers", "ERROR", err)
	}

	// =========================================================================
	// Blockchain Support

	// The identity of this node is resolved once and used to keep the node
	// out of its own peer set.
	idCtx, idCancel := context.WithTimeout(context.Background(), 5*time.Second)
	self := peer.ResolveIdentity(idCtx, &http.Client{Timeout: 5 * time.Second}, cfg.Peers.IdentityURL, cfg.Peers.SelfPort)
	idCancel()
	log.Infow("startup", "status", "identity resolved", "self", self)

	gsp := gossip.New(gossip.Config{
		Timeout:   cfg.Peers.GossipTimeout,
		RPS:       cfg.Peers.GossipRPS,
		EvHandler: ev,
		OnResult:  metrics.ObserveGossip,
	})

	registry := peer.NewRegistry(peer.RegistryConfig{
		Self:      self,
		Known:     append(cfg.Peers.KnownPeers, storedPeers...),
		Storer:    strg,
		Announcer: gsp,
		EvHandler: ev,
	})

	// The state value represents the blockchain node and manages the chain
	// and provides an API for application support.
	st := state.New(state.Config{
		Blocks:        blocks,
		Registry:      registry,
		Broadcaster:   gsp,
		VerifyOnAdopt: cfg.State.VerifyOnAdopt,
		EvHandler:     ev,
	})
	metrics.SetChainLength(st.RetrieveSummary().Length)

	// The worker package snapshots the chain to storage in the background.
	wrk := worker.Run(worker.Config{
		State:     st,
		Storage:   strg,
		Interval:  cfg.State.SnapshotInterval,
		EvHandler: ev,
		OnResult:  metrics.ObserveSnapshot,
	})

	// =========================================================================
	// Admission Support

	var primary admission.Store
	if cfg.Rate.RedisURL != "" {
		rds, err := admission.NewRedis(cfg.Rate.RedisURL, cfg.Rate.RedisTimeout)
		if err != nil {
			return fmt.Errorf("constructing redis store: %w", err)
		}
		defer rds.Close()
		primary = rds
	}

	adm := admission.New(admission.Config{
		Log:            log,
		Primary:        primary,
		PrimaryName:    admission.RedisName,
		Policy:         admission.Policy{Window: cfg.Rate.Window, Limit: cfg.Rate.Limit},
		FallbackPolicy: admission.Policy{Window: cfg.Rate.FallbackWindow, Limit: cfg.Rate.FallbackLimit},
	})

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, st)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:    shutdown,
		Log:         log,
		State:       st,
		Admission:   adm,
		Evts:        evts,
		APIKey:      cfg.Auth.APIKey,
		PruneRetain: cfg.State.PruneRetain,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		wrk.Shutdown()
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			wrk.Shutdown()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}

		// No handler can change the chain anymore, take the final snapshot.
		log.Infow("shutdown", "status", "stopping snapshot worker")
		wrk.Shutdown()

		log.Infow("shutdown", "status", "waiting for gossip")
		gsp.Wait()
	}

	return nil
}

// openStorage constructs the configured storage backend.
func openStorage(backend string, dataDir string) (storage.Storage, error) {
	switch backend {
	case "disk":
		return disk.New(dataDir)
	case "bolt":
		return bolt.New(dataDir)
	}

	return nil, fmt.Errorf("unknown storage backend %q", backend)
}

// loadChain reads the last snapshot. A missing snapshot, or a corrupt one
// when not running strict, starts the node from genesis.
func loadChain(log *zap.SugaredLogger, strg storage.Storage, verify bool, strict bool) ([]database.Block, error) {
	blocks, err := storage.LoadVerified(strg, verify)

	switch {
	case err == nil:
		log.Infow("startup", "status", "chain loaded", "length", len(blocks))
		return blocks, nil

	case errors.Is(err, storage.ErrNotFound):
		log.Warnw("startup", "status", "no chain snapshot found, starting from genesis")
		return nil, nil

	case strict:
		return nil, fmt.Errorf("loading chain: %w", err)

	default:
		log.Warnw("startup", "status", "chain snapshot unusable, starting from genesis", "ERROR", err)
		return nil, nil
	}
}

