package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"vtu/internal/admin"
	"vtu/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamHandler pushes new and newly-settled transactions to the admin
// console over a websocket.
type StreamHandler struct {
	service  *admin.Service
	interval time.Duration
	logger   logger.Logger
}

func NewStreamHandler(service *admin.Service, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		service:  service,
		interval: 5 * time.Second,
		logger:   log,
	}
}

// Transactions upgrades to a websocket and polls for activity since the last
// push. The role check already happened in middleware.
func (h *StreamHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer conn.Close()

	ctx := r.Context()
	since := time.Now()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			txs, err := h.service.TransactionsSince(ctx, since)
			if err != nil {
				h.logger.Error("Stream query failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			since = time.Now()
			if len(txs) == 0 {
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
				continue
			}
			if err := conn.WriteJSON(map[string]interface{}{
				"transactions": txs,
				"at":           since,
			}); err != nil {
				return
			}
		}
	}
}
