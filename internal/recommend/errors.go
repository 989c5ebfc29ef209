package recommend

import (
	"errors"
	"fmt"
)

// 基础错误类型
var (
	ErrNotReady    = errors.New("推荐引擎尚未初始化")
	ErrUnknownUser = errors.New("用户档案不存在")
	ErrRetrainBusy = errors.New("其他实例正在重新加载数据")
)

// EngineError 包含详细错误信息的自定义错误
type EngineError struct {
	Op      string
	UserID  int64
	BaseErr error
	Detail  string
}

func (e *EngineError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 用户:%d): %s", e.BaseErr, e.Op, e.UserID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 用户:%d)", e.BaseErr, e.Op, e.UserID)
}

func (e *EngineError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *EngineError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// UserMessage 返回对外展示的错误文案
func (e *EngineError) UserMessage() string {
	if errors.Is(e.BaseErr, ErrUnknownUser) {
		return fmt.Sprintf("No profile found for user %d", e.UserID)
	}
	return e.BaseErr.Error()
}

func NewNotReadyError(op string) error {
	return &EngineError{Op: op, BaseErr: ErrNotReady}
}

func NewUnknownUserError(op string, userID int64) error {
	return &EngineError{Op: op, UserID: userID, BaseErr: ErrUnknownUser}
}
