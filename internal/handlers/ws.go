package handlers

import (
	"net/http"

	"github.com/dannyrandall/movies-realtime/internal/hub"
	"github.com/dannyrandall/movies-realtime/internal/logging"
	"github.com/gorilla/websocket"
)

var websocketUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Subscribe upgrades the request to a WebSocket and keeps it registered
// with the hub until the connection ends. The channel is push only;
// anything the client sends is discarded.
type Subscribe struct {
	Hub *hub.Hub
}

func (s *Subscribe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logging.ForRequest(r)

	ws, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied with an error status.
		log.WithField("err", err).Warn("problem initiating websocket")
		return
	}

	conn := hub.NewConn(ws)
	log = log.WithField("subscriber", conn.ID())
	s.Hub.Register(conn)
	defer func() {
		s.Hub.Unregister(conn)
		conn.Close()
	}()

	err = conn.Run()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		log.Debug("subscriber disconnected")
		return
	}
	log.WithField("err", err).Info("subscriber connection ended")
}
