package websocket

import (
	"encoding/json"
	"sync"
	"time"
)

// ProgressEvent 任务进度事件,推送给订阅该任务的客户端
type ProgressEvent struct {
	TaskID          string   `json:"task_id"`
	Status          string   `json:"status"`
	ItemsProcessed  int      `json:"items_processed"`
	ProgressPercent float64  `json:"progress_percent"`
	CurrentDataType string   `json:"current_data_type,omitempty"`
	EstimatedTime   *float64 `json:"estimated_time_seconds,omitempty"`
	Message         string   `json:"message,omitempty"`
	Timestamp       int64    `json:"timestamp"`
}

// Hub 管理所有 WebSocket 连接
type Hub struct {
	// 已注册的客户端
	clients map[*Client]bool

	// 广播消息到所有客户端
	Broadcast chan []byte

	// 注册新客户端
	Register chan *Client

	// 注销客户端
	Unregister chan *Client

	// 互斥锁,保护 clients map
	mu sync.RWMutex
}

// NewHub 创建新的 Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan []byte),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run 运行 Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()

		case message := <-h.Broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// PublishProgress 向订阅指定任务的客户端推送进度事件
func (h *Hub) PublishProgress(event ProgressEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.BroadcastToTask(event.TaskID, payload)
}

// BroadcastToTask 向订阅特定任务的客户端广播消息
func (h *Hub) BroadcastToTask(taskID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.TaskID == taskID || client.TaskID == "" {
			select {
			case client.Send <- message:
			default:
				close(client.Send)
				delete(h.clients, client)
			}
		}
	}
}

// GetClientCount 获取客户端数量
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
