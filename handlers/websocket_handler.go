package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/P1T0NN/cristian-website-sub000/live"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Браузерные клиенты ходят с других origin-ов, доступ ограничивает JWT
	// на остальных маршрутах, канал отдаёт только публичные обновления.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WebSocketHandler struct {
	hub    *live.Hub
	logger *slog.Logger
}

func NewWebSocketHandler(hub *live.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// Subscribe апгрейдит соединение и подписывает его на комнату матча.
func (h *WebSocketHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := h.hub.NewClient(conn, fmt.Sprintf("match:%d", matchID))
	h.logger.Debug("websocket client subscribed",
		slog.String("client", client.ID.String()), slog.Int("match_id", matchID))
}
