// Package errors 提供统一错误辅助与对话链路的错误分类，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
)

// 对话链路错误分类：工具级错误在工具边界被吞掉并替换为安全默认值，
// Orchestrator 级错误由 Controller 捕获并推进到下一层。
var (
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrGatewayTimeout     = errors.New("gateway timeout")
	ErrToolParse          = errors.New("tool output parse error")
	ErrStepLimitExceeded  = errors.New("orchestrator step limit exceeded")
	ErrOrchestratorParse  = errors.New("orchestrator parse error")
	ErrSearchUnavailable  = errors.New("search unavailable")
	ErrInsufficientAnswer = errors.New("insufficient answer")
)

// IsGatewayError 判断是否为模型网关错误（不可用或超时）
func IsGatewayError(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable) || errors.Is(err, ErrGatewayTimeout)
}

// IsOrchestratorError 判断是否为推理编排层错误
func IsOrchestratorError(err error) bool {
	return errors.Is(err, ErrStepLimitExceeded) || errors.Is(err, ErrOrchestratorParse)
}

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
