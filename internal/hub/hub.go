// Package hub implements the per-streamer broadcast channel: a room is
// a (streamer, surface) pair, subscribers join over a websocket after
// presenting the surface's overlay token, and publishes are
// fire-and-forget. Nothing is persisted or replayed; a subscriber
// that is offline at publish time simply misses the event, which is
// acceptable because every overlay re-fetches full current state on
// (re)connect.
package hub

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Surface kinds addressable as rooms.
const (
	SurfaceAlert        = "alert"
	SurfaceDonationFeed = "donation_feed"
	SurfaceGoal         = "goal"
	SurfaceTimer        = "timer"
	SurfaceLeaderboard  = "leaderboard"
)

// Room addresses one presentation surface of one streamer.
type Room struct {
	StreamerID uint64
	Surface    string
}

// Message is the envelope written to subscribers: an event name plus
// an arbitrary JSON payload.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub tracks live subscriber connections per room. All methods are
// safe for concurrent use.
type Hub struct {
	mu    sync.RWMutex
	rooms map[Room]map[*websocket.Conn]bool
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{rooms: make(map[Room]map[*websocket.Conn]bool)}
}

// Join registers a connection as a subscriber of the room and
// acknowledges it with a room_joined envelope. The acknowledgement is
// written under the hub lock so it cannot interleave with a publish on
// the same connection.
func (h *Hub) Join(room Room, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*websocket.Conn]bool)
	}
	h.rooms[room][conn] = true
	log.Printf("hub: subscriber joined %s room of streamer %d (total: %d)",
		room.Surface, room.StreamerID, len(h.rooms[room]))

	ack, err := json.Marshal(Message{Event: "room_joined", Data: map[string]any{
		"status":  "success",
		"surface": room.Surface,
	}})
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, ack); err != nil {
		log.Printf("hub: join ack for %s room of streamer %d failed: %v", room.Surface, room.StreamerID, err)
		conn.Close()
		delete(h.rooms[room], conn)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Leave removes a connection from the room and closes it. Empty rooms
// are dropped from the map.
func (h *Hub) Leave(room Room, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[room]; ok {
		delete(conns, conn)
		conn.Close()
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
		log.Printf("hub: subscriber left %s room of streamer %d", room.Surface, room.StreamerID)
	}
}

// Publish delivers an event to every current subscriber of the room.
// There is no acknowledgement and no retry; connections that fail to
// accept the write are dropped.
func (h *Hub) Publish(room Room, event string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[room]
	if !ok {
		return
	}
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		log.Printf("hub: marshal %s event: %v", event, err)
		return
	}
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("hub: write to %s room of streamer %d failed: %v", room.Surface, room.StreamerID, err)
			conn.Close()
			delete(conns, conn)
		}
	}
}

// SubscriberCount reports the live subscriber count of a room.
func (h *Hub) SubscriberCount(room Room) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
