package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_SubscriberCount_Empty(t *testing.T) {
	hub := NewHub()

	assert.Equal(t, 0, hub.SubscriberCount(123))
}

func TestHub_SendToAnalysis_NoSubscribers(t *testing.T) {
	hub := NewHub()

	msg := &Message{
		Type: "analysis_progress",
		Data: map[string]string{"stage": "transcoding"},
	}

	// 无订阅者时不报错
	err := hub.SendToAnalysis(123, msg)
	assert.NoError(t, err)
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()

	c1 := &Client{AnalysisID: 1}
	c2 := &Client{AnalysisID: 1}
	c3 := &Client{AnalysisID: 2}

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)

	assert.Equal(t, 2, hub.SubscriberCount(1))
	assert.Equal(t, 1, hub.SubscriberCount(2))
	assert.Equal(t, 3, hub.ConnectionCount())

	hub.Unregister(c1)
	assert.Equal(t, 1, hub.SubscriberCount(1))

	hub.Unregister(c2)
	assert.Equal(t, 0, hub.SubscriberCount(1))
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestHub_WithRealWebSocket(t *testing.T) {
	hub := NewHub()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		client := &Client{
			AnalysisID: 42,
			Conn:       conn,
		}
		hub.Register(client)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// 等待服务端完成注册
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(42) == 1
	}, time.Second, 10*time.Millisecond)

	msg := &Message{
		Type: "analysis_progress",
		Data: map[string]interface{}{"progress": 60, "stage": "ai_analysis"},
	}
	err = hub.SendToAnalysis(42, msg)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "analysis_progress")
	assert.Contains(t, string(data), "ai_analysis")
}
