package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Subscribers never send payloads; this only bounds control frames.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware for browsers; devices
	// send none.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) streamMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ch, cancel, err := s.store.SubscribeMatch(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	serveStream(w, r, ch, cancel)
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	ch, cancel, err := s.store.SubscribeEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	serveStream(w, r, ch, cancel)
}

func (s *Server) streamActive(w http.ResponseWriter, r *http.Request) {
	ch, cancel, err := s.store.SubscribeActive(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	serveStream(w, r, ch, cancel)
}

// serveStream upgrades the connection and writes every value from ch as a
// JSON text frame until the subscription ends or the peer goes away.
func serveStream[T any](w http.ResponseWriter, r *http.Request, ch <-chan T, cancel func()) {
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "path", r.URL.Path, "error", err)
		return
	}
	defer conn.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go readPump(conn, stop)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case v, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(v); err != nil {
				slog.Debug("websocket write failed", "path", r.URL.Path, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames and calls stop once the peer is gone.
func readPump(conn *websocket.Conn, stop func()) {
	defer stop()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket closed", "error", err)
			}
			return
		}
	}
}
