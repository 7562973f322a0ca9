package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidateTaskID 测试任务 ID 格式校验
func TestValidateTaskID(t *testing.T) {
	assert.NoError(t, ValidateTaskID("task_123"))
	assert.NoError(t, ValidateTaskID("task_550e8400-e29b-41d4-a716-446655440000"))

	assert.ErrorIs(t, ValidateTaskID(""), ErrEmptyID)
	assert.ErrorIs(t, ValidateTaskID(strings.Repeat("a", 65)), ErrIDTooLong)
	assert.ErrorIs(t, ValidateTaskID("task/../etc"), ErrInvalidIDFormat)
	assert.ErrorIs(t, ValidateTaskID("task 1"), ErrInvalidIDFormat)
}

// TestValidateUpload 测试上传约束校验
func TestValidateUpload(t *testing.T) {
	maxSize := int64(8 * 1024 * 1024)
	allowed := []string{"image/jpeg", "image/png"}

	assert.NoError(t, ValidateUpload(1024, "image/jpeg", maxSize, allowed))

	assert.ErrorIs(t, ValidateUpload(0, "image/jpeg", maxSize, allowed), ErrEmptyFile)
	assert.ErrorIs(t, ValidateUpload(maxSize+1, "image/jpeg", maxSize, allowed), ErrFileTooLarge)
	assert.ErrorIs(t, ValidateUpload(1024, "application/pdf", maxSize, allowed), ErrBadMIMEType)
	assert.ErrorIs(t, ValidateUpload(1024, "", maxSize, allowed), ErrBadMIMEType)
}

// TestFormatFileSize 测试文件大小格式化
func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "0 Bytes", FormatFileSize(0))
	assert.Equal(t, "1.00 KB", FormatFileSize(1024))
	assert.Equal(t, "2.50 MB", FormatFileSize(int64(2.5*1024*1024)))
}
