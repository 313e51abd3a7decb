package mid_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ardanlabs/powchain/business/sys/admission"
	"github.com/ardanlabs/powchain/business/sys/validate"
	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/business/web/mid"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func ok(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, map[string]bool{"ok": true}, http.StatusOK)
}

func serve(t *testing.T, handler web.Handler, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	log := zaptest.NewLogger(t).Sugar()
	h := mid.Errors(log)(mid.Panics()(handler))

	w := httptest.NewRecorder()
	ctx := web.InitValues(r.Context(), "00000000-0000-0000-0000-000000000000")
	require.NoError(t, h(ctx, w, r.WithContext(ctx)))

	return w
}

func Test_Authenticate(t *testing.T) {
	h := mid.Authenticate("secretkey")(ok)

	r := httptest.NewRequest(http.MethodPost, "/mine", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(t, h, r).Code, "missing key")

	r = httptest.NewRequest(http.MethodPost, "/mine", nil)
	r.Header.Set(mid.APIKeyHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(t, h, r).Code, "wrong key")

	r = httptest.NewRequest(http.MethodPost, "/mine", nil)
	r.Header.Set(mid.APIKeyHeader, "secretkey")
	assert.Equal(t, http.StatusOK, serve(t, h, r).Code)

	empty := mid.Authenticate("")(ok)
	r = httptest.NewRequest(http.MethodPost, "/mine", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(t, empty, r).Code, "an empty secret admits nobody")
}

func Test_RateLimit(t *testing.T) {
	ctrl := admission.New(admission.Config{
		FallbackPolicy: admission.Policy{Window: time.Minute, Limit: 2},
	})
	h := mid.RateLimit(zaptest.NewLogger(t).Sugar(), ctrl)(ok)

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "/mine", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		assert.Equal(t, http.StatusOK, serve(t, h, r).Code)
	}

	r := httptest.NewRequest(http.MethodPost, "/mine", nil)
	r.RemoteAddr = "10.0.0.1:6666"
	assert.Equal(t, http.StatusTooManyRequests, serve(t, h, r).Code, "the port is not part of the client")

	r = httptest.NewRequest(http.MethodPost, "/mine", nil)
	r.RemoteAddr = "10.0.0.2:5555"
	assert.Equal(t, http.StatusOK, serve(t, h, r).Code)
}

func Test_Errors(t *testing.T) {
	type table struct {
		name   string
		err    error
		status int
	}

	tt := []table{
		{name: "trusted", err: errs.NewTrusted(errors.New("bad payload"), http.StatusBadRequest), status: http.StatusBadRequest},
		{name: "fields", err: validate.FieldErrors{{Field: "data", Error: "data is required"}}, status: http.StatusBadRequest},
		{name: "untrusted", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tst := range tt {
		t.Run(tst.name, func(t *testing.T) {
			h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return tst.err
			}

			w := serve(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tst.status, w.Code)

			var resp errs.Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
			if tst.status == http.StatusInternalServerError {
				assert.NotContains(t, resp.Error, "boom", "untrusted messages stay in the logs")
			}
		})
	}
}

func Test_Panics(t *testing.T) {
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("empty chain")
	}

	w := serve(t, h, httptest.NewRequest(http.MethodGet, "/tip", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func Test_Cors(t *testing.T) {
	h := mid.Cors("*")(ok)

	w := serve(t, h, httptest.NewRequest(http.MethodOptions, "/mine", nil))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), mid.APIKeyHeader)
}
