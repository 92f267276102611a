package server

import (
	"encoding/json"
	"net/http"

	"quote-ticker/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *APIServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.connections.Store(int64(len(s.clients)))
			// New subscribers get the current cache without waiting for a fetch
			s.sendTo(client, s.snapshotEvent())

		case client := <-s.unregister:
			s.drop(client)

		case event := <-s.broadcast:
			for client := range s.clients {
				select {
				case client.send <- event:
				default:
					// Client too slow, disconnect to keep the hub moving
					s.Logger.Warning("Dropping slow client %s", client.id)
					s.drop(client)
				}
			}

		case <-s.quit:
			for client := range s.clients {
				s.drop(client)
			}
			return
		}
	}
}

// -----------------------------------------------------------------------------

// drop must only run on the hub goroutine.
func (s *APIServer) drop(client *Client) {
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		client.mu.Lock()
		client.closed = true
		close(client.send)
		client.mu.Unlock()
		s.connections.Store(int64(len(s.clients)))
	}
}

// -----------------------------------------------------------------------------

func (s *APIServer) sendTo(client *Client, event models.MEvent) {
	select {
	case client.send <- event:
	default:
		s.Logger.Warning("Send buffer full for client %s", client.id)
	}
}

// -----------------------------------------------------------------------------

func (s *APIServer) snapshotEvent() models.MEvent {
	return models.MEvent{Event: models.EventQuotesUpdate, Data: s.quotes.CachedQuotes()}
}

// -----------------------------------------------------------------------------
// Broadcaster Implementation
// -----------------------------------------------------------------------------

// Emit queues an event for every connected client. It never blocks; when the
// queue is full the event is dropped.
func (s *APIServer) Emit(event string, payload interface{}) {
	select {
	case s.broadcast <- models.MEvent{Event: event, Data: payload}:
	case <-s.quit:
	default:
		s.Logger.Warning("Broadcast queue full, dropping %s", event)
	}
}

// -----------------------------------------------------------------------------

// Connections returns the number of live WebSocket clients.
func (s *APIServer) Connections() int {
	return int(s.connections.Load())
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan models.MEvent, 64),
	}

	select {
	case s.register <- client:
	case <-s.quit:
		_ = conn.Close()
		return
	}
	s.Logger.Debug("Client %s connected from %s", client.id, c.ClientIP())

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *APIServer) HandleClientMessage(client *Client, message []byte) {
	var frame models.MEvent
	if err := json.Unmarshal(message, &frame); err != nil {
		s.Logger.Info("Ignoring malformed frame from %s: %v", client.id, err)
		return
	}

	switch frame.Event {
	case models.EventQuotesSubscribe:
		client.enqueue(s.snapshotEvent())
	default:
		s.Logger.Debug("Ignoring event %q from %s", frame.Event, client.id)
	}
}
