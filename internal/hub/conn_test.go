package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveConn upgrades a single connection, hands it to the test through the
// returned channel and runs it until it fails.
func serveConn(t *testing.T, configure func(*Conn)) (*websocket.Conn, <-chan *Conn, <-chan error) {
	t.Helper()

	conns := make(chan *Conn, 1)
	errs := make(chan error, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewConn(ws)
		if configure != nil {
			configure(c)
		}
		conns <- c
		errs <- c.Run()
		c.Close()
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, conns, errs
}

func TestConnSendAndRemoteClose(t *testing.T) {
	client, conns, errs := serveConn(t, nil)
	c := <-conns
	assert.NotEmpty(t, c.ID())

	require.NoError(t, c.Send(context.Background(), []byte(`{"type":"movie_created"}`)))

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"movie_created"}`, string(msg))

	// Inbound messages are discarded.
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("hello")))

	require.NoError(t, client.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	select {
	case err := <-errs:
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the client closed")
	}
}

func TestConnSendAfterCloseFails(t *testing.T) {
	_, conns, errs := serveConn(t, nil)
	c := <-conns

	require.NoError(t, c.Close())
	<-errs

	assert.Error(t, c.Send(context.Background(), []byte("late")))
}

func TestConnPingsPeer(t *testing.T) {
	client, _, _ := serveConn(t, func(c *Conn) {
		c.pingPeriod = 10 * time.Millisecond
	})

	pinged := make(chan struct{}, 1)
	client.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})

	// Pings are only processed while reading.
	go client.ReadMessage()

	select {
	case <-pinged:
	case <-time.After(5 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestConnTimesOutSilentPeer(t *testing.T) {
	_, _, errs := serveConn(t, func(c *Conn) {
		c.pingPeriod = time.Hour
		c.pongWait = 20 * time.Millisecond
	})

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not time out")
	}
}

func TestBroadcastAfterRequestDeadline(t *testing.T) {
	client, conns, _ := serveConn(t, nil)
	c := <-conns

	h := New()
	h.Register(c)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Millisecond))
	defer cancel()

	require.NoError(t, h.Broadcast(ctx, "movie_created", map[string]int{"id": 1}))
	assert.Equal(t, 1, h.Len())

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"movie_created","data":{"id":1}}`, string(msg))
}
