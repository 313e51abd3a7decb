// Package admission provides the per client gate protecting the mutating
// entry points of the node. Counts are kept in a primary store, normally
// Redis, with an in process store used when the primary is unavailable.
package admission

import (
	"context"
	"errors"
	"time"

	"github.com/ardanlabs/powchain/business/sys/metrics"
	"go.uber.org/zap"
)

// KeyPrefix is prepended to the client identifier to form the store key.
const KeyPrefix = "rate:"

// Default policy values.
const (
	DefaultWindow = 60 * time.Second
	DefaultLimit  = 10
)

// ErrNoPrimary is returned by Healthy when no primary store is configured.
var ErrNoPrimary = errors.New("no primary store configured")

// Store interface represents the behavior required to count requests for a
// key inside a fixed window. Incr returns the count after incrementing.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Policy defines how many requests are admitted per window.
type Policy struct {
	Window time.Duration
	Limit  int64
}

func (p Policy) withDefaults() Policy {
	if p.Window <= 0 {
		p.Window = DefaultWindow
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	return p
}

// Decision describes the outcome of an admission check.
type Decision struct {
	Allowed bool
	Count   int64
	Store   string
}

// Config represents the configuration for the admission controller. A nil
// Primary means every decision is made by the fallback.
type Config struct {
	Log            *zap.SugaredLogger
	Primary        Store
	PrimaryName    string
	Policy         Policy
	FallbackPolicy Policy
}

// Controller decides whether a client may proceed.
type Controller struct {
	log            *zap.SugaredLogger
	primary        Store
	primaryName    string
	policy         Policy
	fallback       *Memory
	fallbackPolicy Policy
}

// New constructs an admission controller.
func New(cfg Config) *Controller {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	name := cfg.PrimaryName
	if name == "" {
		name = "primary"
	}

	return &Controller{
		log:            log,
		primary:        cfg.Primary,
		primaryName:    name,
		policy:         cfg.Policy.withDefaults(),
		fallback:       NewMemory(),
		fallbackPolicy: cfg.FallbackPolicy.withDefaults(),
	}
}

// Allow counts the request for the client and reports whether it is within
// policy. Any failure of the primary store moves the decision to the in
// process fallback with its own policy.
func (c *Controller) Allow(ctx context.Context, client string) Decision {
	key := KeyPrefix + client

	if c.primary != nil {
		count, err := c.primary.Incr(ctx, key, c.policy.Window)
		if err == nil {
			return c.decide(c.primaryName, count, c.policy)
		}

		c.log.Warnw("admission", "status", "primary store failed, using fallback", "client", client, "ERROR", err)
	}

	count, err := c.fallback.Incr(ctx, key, c.fallbackPolicy.Window)
	if err != nil {
		// The memory store only fails on a cancelled context.
		c.log.Errorw("admission", "status", "fallback store failed", "client", client, "ERROR", err)
		return Decision{Store: FallbackName}
	}

	return c.decide(FallbackName, count, c.fallbackPolicy)
}

// Healthy pings the primary store. A primary that can't be pinged is
// reported healthy when it exists.
func (c *Controller) Healthy(ctx context.Context) error {
	if c.primary == nil {
		return ErrNoPrimary
	}

	p, ok := c.primary.(Pinger)
	if !ok {
		return nil
	}

	return p.Ping(ctx)
}

func (c *Controller) decide(store string, count int64, policy Policy) Decision {
	d := Decision{
		Allowed: count <= policy.Limit,
		Count:   count,
		Store:   store,
	}

	metrics.ObserveAdmission(store, d.Allowed)

	return d
}
