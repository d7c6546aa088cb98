package hub

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/ksuid"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Conn is a Subscriber backed by a WebSocket.
type Conn struct {
	id string
	ws *websocket.Conn

	// gorilla/websocket supports one concurrent writer.
	mu sync.Mutex

	pingPeriod time.Duration
	pongWait   time.Duration
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{
		id:         ksuid.New().String(),
		ws:         ws,
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
	}
}

func (c *Conn) ID() string {
	return c.id
}

// Send writes msg as one text frame. The write deadline is always writeWait
// from now; the caller's deadline belongs to its request, not to this peer.
func (c *Conn) Send(ctx context.Context, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

// Run reads and discards inbound messages until the connection fails or is
// closed, pinging the peer so a vanished client is noticed.
func (c *Conn) Run() error {
	c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go c.ping(done)

	for {
		if _, _, err := c.ws.NextReader(); err != nil {
			return err
		}
	}
}

func (c *Conn) ping(done <-chan struct{}) {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				// Expected if the other end goes away; the reader will notice.
				log.WithFields(log.Fields{"subscriber": c.id, "err": err}).Debug("failed to write ping")
				return
			}
		}
	}
}
