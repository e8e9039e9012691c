package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tasklist/tasklist/services"
)

// EventsHandler upgrades connections onto the task-events hub.
type EventsHandler struct {
	hub *services.Hub
}

func NewEventsHandler(hub *services.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the HTTP connection and subscribes it to task
// change events.
func (h *EventsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}

	client := &services.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
	}
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
