package httpserver_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/orgkit/pkg/httpserver"
)

func TestServer_RunAndShutdown(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		order []string
	)
	hook := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return err
		}
	}

	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithShutdownTimeout(time.Second),
		httpserver.WithShutdownHook("first", hook("first", nil)),
		httpserver.WithShutdownHook("second", hook("second", errors.New("boom"))),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "pong")
		}))
	}()

	addrCtx, addrCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer addrCancel()
	addr, err := srv.Addr(addrCtx)
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, httpserver.ErrShutdown)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"second", "first"}, order)

	// repeated shutdown is a no-op returning the same result
	assert.ErrorIs(t, srv.Shutdown(context.Background()), httpserver.ErrShutdown)
}

func TestServer_StartFailure(t *testing.T) {
	t.Parallel()

	var released []string
	srv := httpserver.New(
		httpserver.WithAddr("256.0.0.1:99999"),
		httpserver.WithShutdownHook("store", func(context.Context) error {
			released = append(released, "store")
			return nil
		}),
		httpserver.WithShutdownHook("db", func(context.Context) error {
			released = append(released, "db")
			return nil
		}),
	)
	err := srv.Run(context.Background(), nil)
	assert.ErrorIs(t, err, httpserver.ErrStart)
	assert.Equal(t, []string{"db", "store"}, released, "hooks release resources when listen fails")
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	srv := httpserver.NewFromConfig(httpserver.Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, nil) }()

	addr, err := srv.Addr(context.Background())
	require.NoError(t, err)
	assert.Contains(t, addr.String(), "127.0.0.1:")

	cancel()
	assert.NoError(t, <-done)
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	t.Run("liveness", func(t *testing.T) {
		w := httptest.NewRecorder()
		httpserver.HealthCheckHandler(nil, time.Second)(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("readiness failure", func(t *testing.T) {
		h := httpserver.HealthCheckHandler(nil, time.Second,
			httpserver.Check{Name: "mongo", Fn: func(context.Context) error { return nil }},
			httpserver.Check{Name: "redis", Fn: func(context.Context) error { return errors.New("down") }},
		)
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"unavailable","failed":["redis"]}`, w.Body.String())
	})

	t.Run("check sees deadline", func(t *testing.T) {
		h := httpserver.HealthCheckHandler(nil, 50*time.Millisecond,
			httpserver.Check{Name: "slow", Fn: func(ctx context.Context) error {
				_, ok := ctx.Deadline()
				assert.True(t, ok)
				return nil
			}},
		)
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
