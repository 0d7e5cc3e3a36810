package websocket

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hub := NewHub()
	go hub.Run()

	router := gin.New()
	router.GET("/ws/tasks/:id", TaskProgressHandler(hub, logger))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return hub, server
}

func dialTask(t *testing.T, server *httptest.Server, taskID string) *gorillaWS.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/tasks/" + taskID
	conn, _, err := gorillaWS.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *gorillaWS.Conn) ProgressEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	// 写泵可能把积压事件合并入同一帧,取第一行
	line := strings.SplitN(string(payload), "\n", 2)[0]
	var event ProgressEvent
	require.NoError(t, json.Unmarshal([]byte(line), &event))
	return event
}

func TestSubscriptionAck(t *testing.T) {
	_, server := startHubServer(t)
	conn := dialTask(t, server, "task-1")

	ack := readEvent(t, conn)
	assert.Equal(t, "task-1", ack.TaskID)
	assert.Equal(t, "subscribed", ack.Message)
	assert.NotZero(t, ack.Timestamp)
}

func TestProgressDeliveredToSubscriber(t *testing.T) {
	hub, server := startHubServer(t)
	conn := dialTask(t, server, "task-1")
	readEvent(t, conn) // 消费订阅确认

	// 等订阅注册完成再推送
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	// 其他任务的事件不会到达该订阅
	hub.PublishProgress(ProgressEvent{TaskID: "other", Status: "running", ItemsProcessed: 1})
	hub.PublishProgress(ProgressEvent{TaskID: "task-1", Status: "running", ItemsProcessed: 42, ProgressPercent: 42})

	event := readEvent(t, conn)
	assert.Equal(t, "task-1", event.TaskID)
	assert.Equal(t, 42, event.ItemsProcessed)
	assert.Equal(t, "running", event.Status)
}
