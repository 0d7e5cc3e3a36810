package api

import (
	"errors"
	"net/http"

	"github.com/devjogerio/web-scraping-facebook/internal/service"
	"github.com/gin-gonic/gin"
)

// Response 统一响应格式
type Response struct {
	Code    int         `json:"code"` // 状态码: 0 表示成功,非 0 表示失败
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// ErrorResponse 错误响应格式
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// PaginatedResponse 分页响应
type PaginatedResponse struct {
	Code       int            `json:"code"`
	Message    string         `json:"message"`
	Data       interface{}    `json:"data"`
	Pagination PaginationInfo `json:"pagination"`
}

// PaginationInfo 分页信息
type PaginationInfo struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string, detail string) {
	statusCode := http.StatusInternalServerError
	if code >= 400 && code < 600 {
		statusCode = code
	}

	c.JSON(statusCode, ErrorResponse{
		Code:    code,
		Message: message,
		Detail:  detail,
	})
}

// Paginated 分页响应
func Paginated(c *gin.Context, data interface{}, pagination PaginationInfo) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Code:       0,
		Message:    "success",
		Data:       data,
		Pagination: pagination,
	})
}

// ServiceError 把业务错误映射为 HTTP 响应
func ServiceError(c *gin.Context, err error) {
	switch {
	case service.IsValidationError(err):
		Error(c, http.StatusBadRequest, "参数校验失败", err.Error())
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrExportNotFound):
		Error(c, http.StatusNotFound, "资源不存在", err.Error())
	case errors.Is(err, service.ErrTaskBusy),
		errors.Is(err, service.ErrURLBusy),
		errors.Is(err, service.ErrExportBusy),
		service.IsInvalidTransition(err):
		Error(c, http.StatusConflict, "当前状态不允许该操作", err.Error())
	case errors.Is(err, service.ErrNotEligible),
		errors.Is(err, service.ErrNoData),
		errors.Is(err, service.ErrFileMissing):
		Error(c, http.StatusUnprocessableEntity, "无法处理的请求", err.Error())
	default:
		Error(c, http.StatusInternalServerError, "服务器内部错误", err.Error())
	}
}
