package comfy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsServer(t *testing.T, serve func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn, r)
	}))
}

func TestConnectReceivesFramesInOrder(t *testing.T) {
	gotClient := make(chan string, 1)
	srv := wsServer(t, func(conn *websocket.Conn, r *http.Request) {
		gotClient <- r.URL.Query().Get("clientId")
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"status"}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	})
	defer srv.Close()

	c := newTestClient(t, srv)
	ch, err := c.Connect(context.Background(), "client-ws")
	require.NoError(t, err)
	defer ch.Close()

	assert.Equal(t, "client-ws", <-gotClient)

	msg, err := ch.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BinaryMessage, msg.Type)
	assert.Equal(t, []byte{1, 2, 3}, msg.Data)

	msg, err = ch.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TextMessage, msg.Type)
	assert.JSONEq(t, `{"type":"status"}`, string(msg.Data))

	_, err = ch.Receive(context.Background())
	assert.True(t, errors.Is(err, ErrChannelClosed), "got %v", err)
}

func TestReceiveHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := wsServer(t, func(conn *websocket.Conn, r *http.Request) {
		<-release
	})
	defer srv.Close()
	defer close(release)

	ch, err := newTestClient(t, srv).Connect(context.Background(), "client-ws")
	require.NoError(t, err)
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = ch.Receive(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn, r *http.Request) {
		_, _, _ = conn.ReadMessage()
	})
	defer srv.Close()

	ch, err := newTestClient(t, srv).Connect(context.Background(), "client-ws")
	require.NoError(t, err)
	first := ch.Close()
	assert.Equal(t, first, ch.Close())
}

func TestConnectRejectedHandshake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Connect(context.Background(), "client-ws")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "got %v", err)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}
