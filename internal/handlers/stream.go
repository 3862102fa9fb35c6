package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     checkStreamOrigin,
}

// AllowedOrigin reports whether a browser origin may call the API: the
// desktop webview and pages served from localhost. An empty origin is a
// non-browser client.
func AllowedOrigin(origin string) bool {
	return origin == "" ||
		strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:") ||
		strings.HasPrefix(origin, "wails://")
}

// checkStreamOrigin accepts the CORS allowlist plus the server's own host,
// so the bundled UI works on any listen address
func checkStreamOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if AllowedOrigin(origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// HandleSearchStream handles GET /api/v1/search/stream. Every published
// snapshot is pushed to the client as a SearchResponse; clients that fall
// behind skip straight to the newest one.
func (h *Handler) HandleSearchStream(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.Session.Subscribe()
	defer unsubscribe()

	logger := h.log().With(zap.String("remote", r.RemoteAddr))
	logger.Debug("stream client connected")

	// The read loop only services control frames and notices disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			logger.Debug("stream client disconnected")
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := conn.WriteJSON(h.searchResponse(snap, true)); err != nil {
				logger.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
