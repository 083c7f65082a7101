package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	ws "github.com/coder/websocket"
)

const (
	outboundBuffer = 16
	pingInterval   = 30 * time.Second
)

// HandleWebSocket returns an HTTP handler that upgrades the connection and
// streams hub broadcasts to it until either side closes.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			slog.Warn("websocket accept", "error", err)
			return
		}
		serveConn(r.Context(), hub, conn)
	}
}

// serveConn pumps broadcasts to a single connection. Inbound frames are
// discarded; the read loop exists only to notice the peer going away.
func serveConn(ctx context.Context, hub *Hub, conn *ws.Conn) {
	out := hub.Subscribe(outboundBuffer)
	defer hub.Unsubscribe(out)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-out:
			if !ok {
				return
			}
			if err := conn.Write(ctx, ws.MessageText, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
