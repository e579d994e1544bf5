package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleeedolinux/resocket/auth"
)

func TestDoSendsBearerAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/4", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"id":4,"name":"Friday quiz"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", auth.NewMemoryStore("abc"))

	var out struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, c.Get(context.Background(), "/sessions/4", &out))
	assert.Equal(t, 4, out.ID)
	assert.Equal(t, "Friday quiz", out.Name)
}

func TestDoWithoutTokenOmitsHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, auth.NewMemoryStore(""))
	require.NoError(t, c.Post(context.Background(), "/ping", map[string]int{"n": 1}, nil))
}

func TestUnauthorizedClearsTokenAndRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	defer srv.Close()

	store := auth.NewMemoryStore("stale")
	var redirected string
	c := NewClient(srv.URL, store, WithUnauthorizedHandler(func(path string) { redirected = path }))

	err := c.Get(context.Background(), "/me", nil)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Could not validate credentials", err.Error())
	assert.Equal(t, LoginPath, redirected)

	tok, _ := store.Get(context.Background())
	assert.Empty(t, tok)
}

func TestErrorDetailFallback(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", "<html>oops</html>", "Request failed"},
		{"no detail", `{"error":"x"}`, "Request failed"},
		{"empty detail", `{"detail":""}`, "Request failed"},
		{"structured detail", `{"detail":[{"msg":"field required"}]}`, `[{"msg":"field required"}]`},
		{"string detail", `{"detail":"Team not found"}`, "Team not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewClient(srv.URL, auth.NewMemoryStore("")).Get(context.Background(), "/x", nil)
			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusNotFound, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Detail)
		})
	}
}

func TestBreakerOpensOnServerErrorsOnly(t *testing.T) {
	var hits atomic.Int32
	status := atomic.Int32{}
	status.Store(http.StatusBadRequest)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, auth.NewMemoryStore(""), WithBreakerSettings(gobreaker.Settings{
		Name:    "test",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	}))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, c.Get(ctx, "/x", nil))
	}
	assert.Equal(t, int32(3), hits.Load())

	status.Store(http.StatusBadGateway)
	assert.Error(t, c.Get(ctx, "/x", nil))
	assert.Error(t, c.Get(ctx, "/x", nil))
	err := c.Get(ctx, "/x", nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), hits.Load())
}

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.URL.Path {
		case "/api/auth/login":
			assert.Equal(t, "qm", body["username"])
			w.Write([]byte(`{"access_token":"qm-token","token_type":"bearer","role":"qm"}`))
		case "/api/auth/teams/login":
			assert.Equal(t, "JOIN42", body["code"])
			assert.Equal(t, "phone", body["nickname"])
			w.Write([]byte(`{"access_token":"team-token","token_type":"bearer","role":"team"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := auth.NewMemoryStore("")
	c := NewClient(srv.URL, store)
	ctx := context.Background()

	tok, err := c.Login(ctx, "qm", "pw")
	require.NoError(t, err)
	assert.Equal(t, "qm", tok.Role)
	stored, _ := store.Get(ctx)
	assert.Equal(t, "qm-token", stored)

	tok, err = c.TeamLogin(ctx, "JOIN42", "phone")
	require.NoError(t, err)
	assert.Equal(t, "team", tok.Role)
	stored, _ = store.Get(ctx)
	assert.Equal(t, "team-token", stored)

	require.NoError(t, c.Logout(ctx))
	stored, _ = store.Get(ctx)
	assert.Empty(t, stored)
}

func TestLoginWithoutAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, auth.NewMemoryStore("")).Login(context.Background(), "a", "b")
	assert.Error(t, err)
}

func TestRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, auth.NewMemoryStore(""), WithRateLimit(0.001, 1))
	require.NoError(t, c.Get(context.Background(), "/x", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Get(ctx, "/x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}
