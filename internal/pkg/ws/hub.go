package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type Hub struct {
	// 每个分析任务可以有多个订阅连接（多标签页、重连等场景）
	clients map[int64]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	AnalysisID int64
	Conn       *websocket.Conn
	mu         sync.Mutex // 写锁，防止并发写入
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.AnalysisID] == nil {
		h.clients[client.AnalysisID] = make(map[*Client]struct{})
	}
	h.clients[client.AnalysisID][client] = struct{}{}

	log.Printf("Analysis %d: subscriber connected, conns: %d", client.AnalysisID, len(h.clients[client.AnalysisID]))
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[client.AnalysisID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.clients, client.AnalysisID)
		}
	}
	log.Printf("Analysis %d: subscriber disconnected", client.AnalysisID)
}

// SendToAnalysis 向订阅了指定分析任务的所有连接发送消息
func (h *Hub) SendToAnalysis(analysisID int64, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns, ok := h.clients[analysisID]
	if !ok {
		h.mu.RUnlock()
		return nil
	}
	// 复制一份引用，避免长时间持锁
	clients := make([]*Client, 0, len(conns))
	for c := range conns {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		err := c.Conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			log.Printf("SendToAnalysis write error for analysis %d: %v", analysisID, err)
		}
	}
	return nil
}

// SubscriberCount 获取某个分析任务的订阅连接数
func (h *Hub) SubscriberCount(analysisID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[analysisID])
}

// ConnectionCount 获取在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}
