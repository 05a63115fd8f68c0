package assets

import (
	"errors"
	"fmt"
)

// 仓储与服务层共享的哨兵错误。
var (
	ErrNotFound = errors.New("asset not found")
	ErrConflict = errors.New("asset id already exists")
)

// ValidationError 表示提交的数据未通过写入前校验。
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}
