package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = gorillaWS.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 进度推送不携带敏感数据,允许任意来源订阅
		return true
	},
}

// TaskProgressHandler 任务进度 WebSocket 处理器
// 路径参数 :id 指定订阅的任务,客户端只接收该任务的进度事件
func TaskProgressHandler(hub *Hub, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 获取订阅的任务 ID
		taskID := c.Param("id")
		if taskID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing task id"})
			return
		}

		// 2. 升级连接
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade connection"})
			return
		}

		// 3. 创建并注册订阅
		client := NewClient(uuid.New().String(), taskID, hub, conn, logger)
		hub.Register <- client

		// 4. 启动读写泵,并确认订阅已建立
		go client.ReadPump()
		go client.WritePump()
		client.SendEvent(ProgressEvent{
			TaskID:  taskID,
			Message: "subscribed",
		})
	}
}
