// Package testutil provides shared test fixtures.
package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wcf000/rediskit/pkg/connection"
)

// NewStore starts an in-process server and returns a standalone store
// connected to it. Both are cleaned up when the test ends. The server
// handle is returned for direct manipulation (FastForward, SetError,
// Close).
func NewStore(t *testing.T) (connection.Store, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	store := connection.NewStandalone(client)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store, srv
}
