package handlers

import (
	"log"
	"net/http"

	"github.com/fitduel/fitduel-backend/internal/service"
	"github.com/fitduel/fitduel-backend/internal/websocket"
	ws "github.com/gorilla/websocket"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

type WebSocketHandler struct {
	hub         *websocket.Hub
	authService *service.AuthService
}

func NewWebSocketHandler(hub *websocket.Hub, authService *service.AuthService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		authService: authService,
	}
}

func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// Browser WebSocket clients cannot set headers, so the token rides in
	// the query string.
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.authService.AuthenticateToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	// Upgrade to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	// Create client
	client := websocket.NewClient(h.hub, conn, userID)
	h.hub.Register(client)

	// Start goroutines
	go client.WritePump()
	go client.ReadPump()
}
