package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"

	// 连接与配置错误
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeAuth          ErrorCode = "AUTH_ERROR"

	// 检索错误
	ErrCodeResourceNotFound  ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeInvalidCollection ErrorCode = "INVALID_COLLECTION"

	// 外部服务错误
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeMalformedOutput ErrorCode = "MALFORMED_OUTPUT"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Type     ErrorType   `json:"type"`
	HTTPCode int         `json:"-"`
	Details  interface{} `json:"details,omitempty"`
	Cause    error       `json:"-"`
}

// 哨兵错误，配合 errors.Is 按错误码匹配
var (
	ErrConfiguration     = &AppError{Code: ErrCodeConfiguration}
	ErrAuth              = &AppError{Code: ErrCodeAuth}
	ErrNotFound          = &AppError{Code: ErrCodeResourceNotFound}
	ErrInvalidCollection = &AppError{Code: ErrCodeInvalidCollection}
	ErrMalformedOutput   = &AppError{Code: ErrCodeMalformedOutput}
)

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is 错误码相同即视为同一类错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewSystemError 创建系统错误
func NewSystemError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewConfigurationError 连接地址缺失或格式错误
func NewConfigurationError(format string, args ...interface{}) *AppError {
	return NewSystemError(ErrCodeConfiguration, fmt.Sprintf(format, args...))
}

// NewAuthError 安全传输缺少凭证
func NewAuthError(format string, args ...interface{}) *AppError {
	return &AppError{
		Code:     ErrCodeAuth,
		Message:  fmt.Sprintf(format, args...),
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewNotFoundError 创建资源未找到错误
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:     ErrCodeResourceNotFound,
		Message:  fmt.Sprintf("%s not found", resource),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusNotFound,
	}
}

// NewInvalidCollectionError 集合名为空或集合不存在
func NewInvalidCollectionError(name string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidCollection,
		Message:  fmt.Sprintf("invalid collection: %s", name),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusNotFound,
	}
}

// NewMalformedOutputError 模型输出无法解析为JSON
func NewMalformedOutputError(reason string) *AppError {
	return &AppError{
		Code:     ErrCodeMalformedOutput,
		Message:  reason,
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusBadGateway,
	}
}

// IsAppError 检查是否为AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// IsFatal 配置与鉴权错误说明部署有问题，必须向上暴露
func IsFatal(err error) bool {
	return stderrors.Is(err, ErrConfiguration) || stderrors.Is(err, ErrAuth)
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}
