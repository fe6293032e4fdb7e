package webserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zsprackett/usagebar/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteWait = 10 * time.Second

// handleWS streams the same events as /events over a websocket. The client
// never sends anything meaningful; reads only detect the close.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch := make(chan events.Event, 16)
	s.addClient(ch)
	defer s.removeClient(ch)

	send := func(e events.Event) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(e) == nil
	}
	if !send(events.Event{Type: events.TypeSnapshot, State: s.src.State()}) {
		return
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			if !send(e) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
