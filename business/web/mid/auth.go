package mid

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/web"
)

// APIKeyHeader is the header carrying the shared secret.
const APIKeyHeader = "X-API-Key"

// ErrUnauthorized is returned when the shared secret is missing or wrong.
var ErrUnauthorized = errors.New("invalid or missing api key")

// Authenticate validates the shared secret carried in the X-API-Key header.
func Authenticate(apiKey string) web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			got := r.Header.Get(APIKeyHeader)

			if apiKey == "" || subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				return errs.NewTrusted(ErrUnauthorized, http.StatusUnauthorized)
			}

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
