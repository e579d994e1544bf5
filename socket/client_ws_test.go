package socket

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleeedolinux/resocket/auth"
	"github.com/kleeedolinux/resocket/socket/transport"
)

func TestWebSocketOptionsReachDefaultDialer(t *testing.T) {
	agents := make(chan string, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "/ws/display/1",
		WithTokenStore(auth.NewMemoryStore("")),
		WithDialTimeout(waitFor),
		WithWebSocketOptions(transport.WithHeaders(http.Header{"User-Agent": {"quiz-display"}})),
	)
	defer c.Close()
	rec := newRecorder()
	c.On(EventOpen, rec.handler(EventOpen))

	require.NoError(t, c.Connect())
	require.Eventually(t, func() bool { return rec.count(EventOpen) == 1 }, waitFor, tick)
	assert.Equal(t, "quiz-display", <-agents)
}
