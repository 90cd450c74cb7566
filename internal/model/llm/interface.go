package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	chaterrors "context-chatbot/pkg/errors"
)

// Client LLM 客户端接口
type Client interface {
	// GenerateWithContext 单轮补全：complete(prompt) -> text
	GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error)
	// ChatWithContext 多轮对话补全
	ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ClientConfig 创建客户端所需参数
type ClientConfig struct {
	Provider   string // ollama | openai
	Model      string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// NewClient 创建新的 LLM 客户端；openai 为任意 OpenAI 兼容端点（含 Ollama 的 /v1）
func NewClient(cfg ClientConfig) (Client, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllamaClient(cfg.Model, cfg.BaseURL, cfg.Timeout)
	case "openai":
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// classifyError 将底层传输错误归类为网关超时或网关不可用
func classifyError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, chaterrors.ErrGatewayTimeout) || errors.Is(err, chaterrors.ErrGatewayUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", chaterrors.ErrGatewayTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", chaterrors.ErrGatewayTimeout, err)
	}
	return fmt.Errorf("%w: %v", chaterrors.ErrGatewayUnavailable, err)
}
