// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/powchain/app/services/node/handlers/v1/private"
	"github.com/ardanlabs/powchain/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/powchain/business/sys/admission"
	"github.com/ardanlabs/powchain/business/web/mid"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// The node's routes are served from the root.
const version = ""

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log         *zap.SugaredLogger
	State       *state.State
	Admission   *admission.Controller
	Evts        *events.Events
	APIKey      string
	PruneRetain int
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:       cfg.Log,
		State:     cfg.State,
		Admission: cfg.Admission,
		WS:        websocket.Upgrader{},
		Evts:      cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/tip", pbl.Tip)
	app.Handle(http.MethodGet, version, "/peers", pbl.Peers)
	app.Handle(http.MethodPost, version, "/add_peer", pbl.AddPeer)
	app.Handle(http.MethodGet, version, "/chain", pbl.Chain)
	app.Handle(http.MethodGet, version, "/chain/summary", pbl.ChainSummary)
	app.Handle(http.MethodGet, version, "/block/:hash", pbl.Block)
	app.Handle(http.MethodPost, version, "/block", pbl.ReceiveBlock)
	app.Handle(http.MethodGet, version, "/health", pbl.Health)
	app.Handle(http.MethodGet, version, "/health_redis", pbl.HealthRedis)
	app.Handle(http.MethodGet, version, "/events", pbl.Events)
}

// PrivateRoutes binds all the version 1 routes guarded by the shared secret.
// Mining is also subject to admission control.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:         cfg.Log,
		State:       cfg.State,
		PruneRetain: cfg.PruneRetain,
	}

	authen := mid.Authenticate(cfg.APIKey)
	limit := mid.RateLimit(cfg.Log, cfg.Admission)

	app.Handle(http.MethodPost, version, "/mine", prv.Mine, authen, limit)
	app.Handle(http.MethodPost, version, "/prune", prv.Prune, authen)
	app.Handle(http.MethodPost, version, "/chain/replace", prv.ReplaceChain, authen)
}
