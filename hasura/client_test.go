package hasura

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitHealthy(t *testing.T) {
	t.Run("returns once the engine answers 200", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/healthz", r.URL.Path)
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := New(srv.URL, "").WaitHealthy(ctx, 10*time.Millisecond)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, calls.Load(), int32(3))
	})

	t.Run("timeout reports the last observed state", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := New(srv.URL, "").WaitHealthy(ctx, 10*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("unreachable endpoint keeps polling until deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := New("http://127.0.0.1:1", "").WaitHealthy(ctx, 10*time.Millisecond)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("empty endpoint fails fast", func(t *testing.T) {
		err := New("", "").WaitHealthy(context.Background(), time.Millisecond)
		assert.ErrorContains(t, err, "no hasura endpoint")
	})
}

func TestCLIArgs(t *testing.T) {
	c := New("http://localhost:8080/", "secret")
	args := c.CLIArgs("services/hasura", "migrate", "apply")
	assert.Equal(t, []string{
		"migrate", "apply",
		"--project", "services/hasura",
		"--endpoint", "http://localhost:8080",
		"--admin-secret", "secret",
	}, args)

	bare := New("", "").CLIArgs("p", "console")
	assert.Equal(t, []string{"console", "--project", "p"}, bare)
}
