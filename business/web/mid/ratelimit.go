package mid

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/ardanlabs/powchain/business/sys/admission"
	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/web"
	"go.uber.org/zap"
)

// ErrRateLimited is returned when a client is over its admission policy.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimit counts the request against the client's address and rejects it
// when the admission controller says no.
func RateLimit(log *zap.SugaredLogger, ctrl *admission.Controller) web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			client := ClientIP(r)

			d := ctrl.Allow(ctx, client)
			if !d.Allowed {
				log.Infow("rate limit", "traceid", web.GetTraceID(ctx), "client", client, "count", d.Count, "store", d.Store)
				w.Header().Set("X-RateLimit-Count", strconv.FormatInt(d.Count, 10))
				return errs.NewTrusted(ErrRateLimited, http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}

// ClientIP returns the host part of the connection's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
