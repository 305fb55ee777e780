package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcf000/rediskit/internal/testutil"
	"github.com/wcf000/rediskit/pkg/cache"
)

func newKVServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, _ := testutil.NewStore(t)
	opts := cache.DefaultOptions()
	opts.JitterMax = 0
	c := cache.New(store, nil, opts, zerolog.Nop())
	srv := httptest.NewServer(kvHandler(c, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestKVRoundtrip(t *testing.T) {
	srv := newKVServer(t)

	resp := doRequest(t, srv, "PUT", "/kv/greeting", `{"msg":"hello"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, srv, "GET", "/kv/greeting", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	resp = doRequest(t, srv, "DELETE", "/kv/greeting", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, srv, "GET", "/kv/greeting", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestKVRejectsInvalidInput(t *testing.T) {
	srv := newKVServer(t)

	resp := doRequest(t, srv, "PUT", "/kv/bad", "not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, srv, "POST", "/kv/bad", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = doRequest(t, srv, "GET", "/kv/", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnvOr(t *testing.T) {
	t.Setenv("REDISKIT_TEST_VAR", "set")
	assert.Equal(t, "set", envOr("REDISKIT_TEST_VAR", "fallback"))
	assert.Equal(t, "fallback", envOr("REDISKIT_TEST_UNSET", "fallback"))
}
