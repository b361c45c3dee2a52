package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/orgkit/pkg/httpserver"
	"github.com/dmitrymomot/orgkit/pkg/logger"
)

func TestResources_Release(t *testing.T) {
	t.Parallel()

	var closed []string
	track := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			closed = append(closed, name)
			return err
		}
	}

	var res resources
	res.add("mongo", track("mongo", nil))
	res.add("tenant_connections", track("tenant_connections", errors.New("boom")))
	res.add("redis", track("redis", nil))

	res.release(context.Background(), logger.Discard())
	assert.Equal(t, []string{"redis", "tenant_connections", "mongo"}, closed, "a failing closer does not stop the rest")

	res.release(context.Background(), logger.Discard())
	assert.Len(t, closed, 3, "released resources are not closed twice")
}

func TestResources_HandOff(t *testing.T) {
	t.Parallel()

	var closed []string
	var res resources
	for _, name := range []string{"mongo", "tenant_connections", "ratelimit_store"} {
		res.add(name, func(context.Context) error {
			closed = append(closed, name)
			return nil
		})
	}

	opts := res.handOff()
	require.Len(t, opts, 3)

	res.release(context.Background(), logger.Discard())
	assert.Empty(t, closed, "handed-off resources belong to the server")

	srv := httpserver.New(append([]httpserver.Option{httpserver.WithAddr("127.0.0.1:0")}, opts...)...)
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Equal(t, []string{"ratelimit_store", "tenant_connections", "mongo"}, closed)
}
