package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *NotificationService {
	t.Helper()

	hub := &NotificationService{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan WebSocketMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	go hub.run()
	t.Cleanup(hub.Shutdown)
	return hub
}

func dialTestHub(t *testing.T, hub *NotificationService) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestInitNotificationService(t *testing.T) {
	prev := GlobalNotificationService
	t.Cleanup(func() { GlobalNotificationService = prev })

	require.NoError(t, InitNotificationService())
	require.NotNil(t, GlobalNotificationService)

	status := GlobalNotificationService.GetStatus()
	assert.Equal(t, 0, status["client_count"])
	assert.Equal(t, MaxWebSocketClients, status["max_clients"])

	GlobalNotificationService.Shutdown()
}

func TestWebSocketBroadcast(t *testing.T) {
	hub := newTestHub(t)
	conn := dialTestHub(t, hub)

	hub.BroadcastEvent(EventBidCreated, map[string]interface{}{
		"bid_id": 1,
		"title":  "Network upgrade",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg WebSocketMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, EventBidCreated, msg.Type)

	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Network upgrade", data["title"])

	_, err = time.Parse(time.RFC3339, msg.Time)
	assert.NoError(t, err)
}

func TestWebSocketSubscriptionFilter(t *testing.T) {
	hub := newTestHub(t)
	conn := dialTestHub(t, hub)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"action": "subscribe",
		"events": []string{EventDeadlineAlert},
	}))

	// Wait for the read pump to apply the subscription
	var client *Client
	hub.mu.RLock()
	for c := range hub.clients {
		client = c
	}
	hub.mu.RUnlock()
	require.NotNil(t, client)
	require.Eventually(t, func() bool {
		return client.wantsEvent(EventDeadlineAlert) && !client.wantsEvent(EventBidCreated)
	}, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastEvent(EventBidCreated, map[string]interface{}{"bid_id": 1})
	hub.BroadcastEvent(EventDeadlineAlert, map[string]interface{}{"message": "1 bid(s) due"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg WebSocketMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, EventDeadlineAlert, msg.Type, "filtered events are skipped")

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "no further messages expected")
}

func TestWantsEvent(t *testing.T) {
	client := &Client{subscribed: make(map[string]bool)}
	assert.True(t, client.wantsEvent(EventBidCreated), "empty subscription set receives everything")
	assert.True(t, client.wantsEvent(EventDeadlineAlert))

	client.subscribed[EventDeadlineAlert] = true
	assert.True(t, client.wantsEvent(EventDeadlineAlert))
	assert.False(t, client.wantsEvent(EventBidCreated))
}

func TestHandleWebSocketAtCapacity(t *testing.T) {
	hub := &NotificationService{
		clients: make(map[*Client]bool),
	}
	for i := 0; i < MaxWebSocketClients; i++ {
		hub.clients[&Client{send: make(chan []byte, 1)}] = true
	}

	req := httptest.NewRequest(http.MethodGet, "/ws/notifications", nil)
	rec := httptest.NewRecorder()
	hub.HandleWebSocket(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub := newTestHub(t)
	conn := dialTestHub(t, hub)

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
