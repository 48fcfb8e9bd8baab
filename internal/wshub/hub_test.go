package wshub

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h *Hub) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		id := h.Connect(conn)
		defer h.Disconnect(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			h.NotePong(id)
		}
	}))
	wsURL := "ws" + srv.URL[len("http"):]
	return srv, wsURL
}

func TestHub_ConnectSendsWelcomeFrame(t *testing.T) {
	h := New(0, 0, nil)
	srv, url := newTestServer(t, h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "connection_established")
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	h := New(0, 0, nil)
	srv, url := newTestServer(t, h)
	defer srv.Close()

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()
		_, _, _ = conn.ReadMessage() // drain welcome
		conns = append(conns, conn)
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, h.ClientCount())

	h.BroadcastChatTyping(true)
	for _, conn := range conns {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(msg), `"chat_typing"`)
	}
}
