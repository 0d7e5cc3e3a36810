package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskModelValidate(t *testing.T) {
	task := &TaskModel{
		ID:     "task-1",
		Name:   "测试任务",
		URL:    "https://www.facebook.com/page",
		Status: TaskStatusPending,
	}
	assert.NoError(t, task.Validate())

	task.Name = ""
	assert.Error(t, task.Validate())

	task.Name = "测试任务"
	task.Status = "unknown"
	assert.Error(t, task.Validate())
}

func TestTaskStatusValid(t *testing.T) {
	for _, status := range ValidTaskStatuses {
		assert.True(t, status.Valid())
	}
	assert.False(t, TaskStatus("archived").Valid())
}

func TestTaskStatusTerminal(t *testing.T) {
	assert.False(t, TaskStatusPending.Terminal())
	assert.False(t, TaskStatusRunning.Terminal())
	assert.True(t, TaskStatusCompleted.Terminal())
	assert.True(t, TaskStatusFailed.Terminal())
	assert.True(t, TaskStatusCancelled.Terminal())
}

func TestStartExecutionResetsRunState(t *testing.T) {
	completed := time.Now().Add(-time.Hour)
	task := &TaskModel{
		ID:           "task-1",
		Status:       TaskStatusFailed,
		ErrorMessage: "previous failure",
		CompletedAt:  &completed,
	}

	task.StartExecution()

	assert.Equal(t, TaskStatusRunning, task.Status)
	require.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)
	assert.Empty(t, task.ErrorMessage)
}

func TestExecutionTransitions(t *testing.T) {
	task := &TaskModel{ID: "task-1", Status: TaskStatusPending}
	task.StartExecution()

	task.CompleteExecution()
	assert.Equal(t, TaskStatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)

	task.StartExecution()
	task.FailExecution("网络错误")
	assert.Equal(t, TaskStatusFailed, task.Status)
	assert.Equal(t, "网络错误", task.ErrorMessage)
	require.NotNil(t, task.CompletedAt)

	task.StartExecution()
	task.CancelExecution()
	assert.Equal(t, TaskStatusCancelled, task.Status)
	require.NotNil(t, task.CompletedAt)
}

func TestIncrementProcessedIgnoresNegative(t *testing.T) {
	task := &TaskModel{ID: "task-1"}
	task.IncrementProcessed(10)
	task.IncrementProcessed(-5)
	task.IncrementProcessed(3)
	assert.Equal(t, 13, task.ItemsProcessed)
}

func TestProgressPercentageBounds(t *testing.T) {
	task := &TaskModel{ID: "task-1", ItemsProcessed: 50}

	assert.InDelta(t, 50.0, task.ProgressPercentage(100), 0.001)

	// 超出上限时封顶 100
	task.ItemsProcessed = 250
	assert.InDelta(t, 100.0, task.ProgressPercentage(100), 0.001)

	// 无效上限返回 0
	assert.Zero(t, task.ProgressPercentage(0))
	assert.Zero(t, task.ProgressPercentage(-10))
}

func TestDuration(t *testing.T) {
	task := &TaskModel{ID: "task-1"}
	assert.Nil(t, task.Duration())

	started := time.Now().Add(-10 * time.Second)
	completed := started.Add(4 * time.Second)
	task.StartedAt = &started
	task.CompletedAt = &completed
	require.NotNil(t, task.Duration())
	assert.InDelta(t, 4.0, *task.Duration(), 0.1)

	// 运行中用当前时间计算
	task.CompletedAt = nil
	task.Status = TaskStatusRunning
	require.NotNil(t, task.Duration())
	assert.GreaterOrEqual(t, *task.Duration(), 9.0)
}
