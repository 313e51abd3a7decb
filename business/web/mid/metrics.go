package mid

import (
	"context"
	"net/http"

	"github.com/ardanlabs/powchain/business/sys/metrics"
	"github.com/ardanlabs/powchain/foundation/web"
)

// Metrics updates program counters.
func Metrics() web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// Call the next handler.
			err := handler(ctx, w, r)

			// The route template keeps the label set bounded.
			if v, verr := web.GetValues(ctx); verr == nil {
				status := v.StatusCode
				if status == 0 {
					status = http.StatusOK
				}
				metrics.ObserveRequest(r.Method, v.Route, status, v.Now)
			}

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return m
}
