package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket timing and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
)

// wsEnvelope wraps every message sent over the websocket.
type wsEnvelope struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// upgrader keeps gorilla's default same-origin check.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleWebSocket streams state updates over a websocket.
//
// The current state is sent on connect and every published state after
// that, each as {"type":"state","data":...}. Incoming messages are read and
// discarded so control frames are processed and disconnects are noticed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// subscribe before the initial send so no update is missed in between
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	done := make(chan struct{})
	go readUntilClosed(conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := writeState(conn, s.store.Get()); err != nil {
		s.logger.Debug("websocket initial write failed", "error", err)
		return
	}

	for {
		select {
		case <-done:
			return

		case <-r.Context().Done():
			// server shutdown; Shutdown does not wait for hijacked connections
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug("websocket ping failed", "error", err)
				return
			}

		case state, ok := <-ch:
			if !ok {
				return
			}
			if err := writeState(conn, state); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

// readUntilClosed drains incoming messages until the connection fails.
func readUntilClosed(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeState(conn *websocket.Conn, state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: "state", Data: json.RawMessage(data)})
}
