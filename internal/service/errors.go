package service

import (
	"errors"
	"fmt"
)

// 业务错误,API 层据此映射 HTTP 状态码
var (
	// ErrTaskNotFound 任务不存在
	ErrTaskNotFound = errors.New("任务不存在")

	// ErrExportNotFound 导出任务不存在
	ErrExportNotFound = errors.New("导出任务不存在")

	// ErrTaskBusy 任务已在执行中
	ErrTaskBusy = errors.New("任务正在执行中")

	// ErrURLBusy 同一 URL 已有任务在执行
	ErrURLBusy = errors.New("该 URL 已有任务正在执行")

	// ErrNotEligible 任务状态不满足导出条件
	ErrNotEligible = errors.New("任务尚未完成,无法导出")

	// ErrNoData 任务没有可导出的数据
	ErrNoData = errors.New("任务没有可导出的数据")

	// ErrExportBusy 任务已有导出在处理中
	ErrExportBusy = errors.New("该任务已有导出正在处理")

	// ErrFileMissing 导出文件已不存在
	ErrFileMissing = errors.New("导出文件不存在或已被删除")
)

// ValidationError 输入校验错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError 创建校验错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError 判断是否为校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvalidTransitionError 非法状态转换错误
type InvalidTransitionError struct {
	TaskID string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("任务 %s 不能从 %s 转换到 %s", e.TaskID, e.From, e.To)
}

// IsInvalidTransition 判断是否为非法状态转换错误
func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}
