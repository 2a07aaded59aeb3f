package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialPair spins up a websocket server that joins every incoming
// connection to the given room and returns a connected client.
func dialPair(t *testing.T, h *Hub, room Room) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.Join(room, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	// Wait for the server side to register the join.
	deadline := time.Now().Add(time.Second)
	for h.SubscriberCount(room) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// The first frame on a fresh subscription is the join
	// acknowledgement. Consume it so tests see only published events.
	client.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read join ack: %v", err)
	}
	var ack Message
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatalf("unmarshal join ack: %v", err)
	}
	if ack.Event != "room_joined" {
		t.Fatalf("first frame event = %q, want room_joined", ack.Event)
	}
	return client
}

func TestJoinSendsAcknowledgement(t *testing.T) {
	h := New()
	room := Room{StreamerID: 7, Surface: SurfaceTimer}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Join(room, conn)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Event != "room_joined" {
		t.Fatalf("event = %q, want room_joined", msg.Event)
	}
	data, ok := msg.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %#v", msg.Data)
	}
	if data["status"] != "success" {
		t.Fatalf("status = %v, want success", data["status"])
	}
	if data["surface"] != SurfaceTimer {
		t.Fatalf("surface = %v, want %s", data["surface"], SurfaceTimer)
	}
}

func TestPublishReachesRoomSubscribers(t *testing.T) {
	h := New()
	room := Room{StreamerID: 7, Surface: SurfaceAlert}
	client := dialPair(t, h, room)

	h.Publish(room, "donation_alert", map[string]any{"donor_name": "alice", "amount": float64(5000)})

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Event != "donation_alert" {
		t.Fatalf("event = %q, want donation_alert", msg.Event)
	}
	data, ok := msg.Data.(map[string]any)
	if !ok || data["donor_name"] != "alice" {
		t.Fatalf("data = %#v", msg.Data)
	}
}

func TestPublishIsScopedToRoom(t *testing.T) {
	h := New()
	alertRoom := Room{StreamerID: 7, Surface: SurfaceAlert}
	timerRoom := Room{StreamerID: 7, Surface: SurfaceTimer}
	otherStreamer := Room{StreamerID: 8, Surface: SurfaceAlert}

	alertClient := dialPair(t, h, alertRoom)
	timerClient := dialPair(t, h, timerRoom)
	otherClient := dialPair(t, h, otherStreamer)

	h.Publish(alertRoom, "donation_alert", map[string]any{"amount": float64(1)})

	alertClient.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := alertClient.ReadMessage(); err != nil {
		t.Fatalf("alert subscriber missed its event: %v", err)
	}

	// Same streamer, different surface: nothing arrives.
	timerClient.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := timerClient.ReadMessage(); err == nil {
		t.Fatal("timer room received an alert event")
	}

	// Same surface, different streamer: nothing arrives.
	otherClient.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := otherClient.ReadMessage(); err == nil {
		t.Fatal("another streamer's room received the event")
	}
}

func TestPublishToEmptyRoomIsNoop(t *testing.T) {
	h := New()
	// Must not panic or block.
	h.Publish(Room{StreamerID: 1, Surface: SurfaceGoal}, "goal_updated", nil)
}

func TestLeaveDropsSubscriber(t *testing.T) {
	h := New()
	room := Room{StreamerID: 7, Surface: SurfaceGoal}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Join(room, conn)
		serverConns <- conn
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	conn := <-serverConns
	if got := h.SubscriberCount(room); got != 1 {
		t.Fatalf("subscribers = %d, want 1", got)
	}
	h.Leave(room, conn)
	if got := h.SubscriberCount(room); got != 0 {
		t.Fatalf("subscribers after leave = %d, want 0", got)
	}
}
