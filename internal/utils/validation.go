package utils

import (
	"fmt"
	"math"
	"regexp"
)

// ValidationError 输入校验错误
type ValidationError struct {
	Code    string
	Message string
}

// Error 实现 error 接口
func (e *ValidationError) Error() string {
	return e.Message
}

// 校验错误常量
var (
	ErrEmptyID         = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong       = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
	ErrEmptyFile       = &ValidationError{Code: "EMPTY_FILE", Message: "uploaded file is empty"}
	ErrFileTooLarge    = &ValidationError{Code: "FILE_TOO_LARGE", Message: "uploaded file exceeds size limit"}
	ErrBadMIMEType     = &ValidationError{Code: "BAD_MIME_TYPE", Message: "unsupported image type"}
)

var taskIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateTaskID 验证任务 ID 格式
// 只允许字母、数字、连字符、下划线,最长 64 字符
func ValidateTaskID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(id) > 64 {
		return ErrIDTooLong
	}
	if !taskIDPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}
	return nil
}

// ValidateUpload 验证上传文件约束
// 必须在创建任务之前完成: MIME 类型在白名单内且体积不超限
func ValidateUpload(size int64, mimeType string, maxSize int64, allowedTypes []string) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > maxSize {
		return ErrFileTooLarge
	}
	for _, allowed := range allowedTypes {
		if mimeType == allowed {
			return nil
		}
	}
	return ErrBadMIMEType
}

// FormatFileSize 格式化文件大小,便于日志与错误消息
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	return fmt.Sprintf("%.2f %s", float64(bytes)/math.Pow(1024, float64(i)), units[i])
}
