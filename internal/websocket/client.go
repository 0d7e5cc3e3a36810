package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// 写超时时间
	writeWait = 10 * time.Second

	// 读超时时间
	pongWait = 60 * time.Second

	// ping 周期 (必须小于 pongWait)
	pingPeriod = (pongWait * 9) / 10

	// 进度事件很小,订阅方也不应上行大消息
	maxMessageSize = 4 * 1024
)

// Client 任务进度的一个订阅连接
type Client struct {
	// ID 连接 ID
	ID string

	// TaskID 订阅的任务 ID,为空表示订阅全部任务
	TaskID string

	// SubscribedAt 订阅建立时间
	SubscribedAt time.Time

	// Hub Hub 实例
	Hub *Hub

	// Conn WebSocket 连接
	Conn *websocket.Conn

	// Send 发送消息的 channel
	Send chan []byte

	logger *logrus.Logger
}

// NewClient 创建新的订阅连接
func NewClient(id string, taskID string, hub *Hub, conn *websocket.Conn, logger *logrus.Logger) *Client {
	return &Client{
		ID:           id,
		TaskID:       taskID,
		SubscribedAt: time.Now(),
		Hub:          hub,
		Conn:         conn,
		Send:         make(chan []byte, 256),
		logger:       logger,
	}
}

// SendEvent 向该连接单发一个进度事件
// 发送缓冲已满时丢弃,订阅方靠后续事件追平
func (c *Client) SendEvent(event ProgressEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.Send <- payload:
	default:
	}
}

// ReadPump 消费订阅方上行消息
// 进度推送是单向的,上行内容直接丢弃,只维持心跳
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).WithFields(logrus.Fields{
					"client_id": c.ID,
					"task_id":   c.TaskID,
				}).Warn("progress subscription closed unexpectedly")
			}
			break
		}
	}
}

// WritePump 向订阅方推送进度事件
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 注销了该订阅
				closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task subscription closed")
				c.Conn.WriteMessage(websocket.CloseMessage, closeMsg)
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 批量发送队列中积压的事件
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
