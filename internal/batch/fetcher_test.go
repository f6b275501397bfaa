package batch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"profile_server/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/email", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"a@b.com","verified":true}`))
	})
	mux.HandleFunc("/v1/uid", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"abc123"`))
	})
	mux.HandleFunc("/v1/avatar", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"avatar":null}`))
	})
	mux.HandleFunc("/v1/display_name", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/v1/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/v1/garbage", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher(t *testing.T) {
	srv := newUpstream(t)
	f := NewHTTPFetcher(srv.URL+"/", time.Second, testLogger())
	args := Args{Authorization: "Bearer tok"}
	ctx := context.Background()

	email, err := f.Fetch(ctx, args, Route{Field: "email", Path: "/v1/email"})
	require.NoError(t, err)
	require.NotNil(t, email)
	assert.Equal(t, "a@b.com", *email)

	uid, err := f.Fetch(ctx, args, Route{Field: "uid", Path: "/v1/uid"})
	require.NoError(t, err)
	require.NotNil(t, uid)
	assert.Equal(t, "abc123", *uid)

	avatar, err := f.Fetch(ctx, args, Route{Field: "avatar", Path: "/v1/avatar"})
	require.NoError(t, err)
	assert.Nil(t, avatar)

	name, err := f.Fetch(ctx, args, Route{Field: "displayName", Path: "/v1/display_name"})
	require.NoError(t, err)
	assert.Nil(t, name)
}

func TestHTTPFetcherWithholdsUnauthorizedFields(t *testing.T) {
	srv := newUpstream(t)
	f := NewHTTPFetcher(srv.URL, time.Second, testLogger())

	email, err := f.Fetch(context.Background(), Args{Authorization: "Bearer other"}, Route{Field: "email", Path: "/v1/email"})
	require.NoError(t, err)
	assert.Nil(t, email)
}

func TestHTTPFetcherFailures(t *testing.T) {
	srv := newUpstream(t)
	f := NewHTTPFetcher(srv.URL, time.Second, testLogger())
	ctx := context.Background()

	_, err := f.Fetch(ctx, Args{}, Route{Field: "x", Path: "/v1/broken"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))

	_, err = f.Fetch(ctx, Args{}, Route{Field: "x", Path: "/v1/garbage"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))

	srv.Close()
	_, err = f.Fetch(ctx, Args{}, Route{Field: "email", Path: "/v1/email"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
}
