package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	chaterrors "context-chatbot/pkg/errors"
)

// OpenAIClient OpenAI 兼容客户端（Ollama /v1、vLLM、OpenAI 等）
type OpenAIClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewOpenAIClient 创建 OpenAI 兼容客户端；BaseURL 为空时用 OPENAI_BASE_URL 或 Ollama 默认端点
func NewOpenAIClient(cfg ClientConfig) (*OpenAIClient, error) {
	model := cfg.Model
	if model == "" {
		model = "llama3"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	// 分层降级本身承担重试职责，默认不在网关内重试
	client.SetRetryCount(cfg.RetryCount)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &OpenAIClient{
		provider: "openai",
		model:    model,
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   client,
	}, nil
}

// GenerateWithContext 使用上下文生成文本
func (c *OpenAIClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []Message{{Role: "user", Content: prompt}}, options)
}

// ChatWithContext 使用上下文聊天
func (c *OpenAIClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	request := map[string]interface{}{
		"model":    c.model,
		"messages": messages,
		"stream":   false,
	}
	if options.Temperature > 0 {
		request["temperature"] = options.Temperature
	}
	if options.MaxTokens > 0 {
		request["max_tokens"] = options.MaxTokens
	}
	if options.TopP > 0 {
		request["top_p"] = options.TopP
	}
	if len(options.Stop) > 0 {
		request["stop"] = options.Stop
	}

	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request)
	if c.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+c.apiKey)
	}

	response, err := req.Post(c.baseURL + "/chat/completions")
	if err != nil {
		return "", classifyError(ctx, fmt.Errorf("调用 chat/completions failed: %w", err))
	}

	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", chaterrors.ErrGatewayUnavailable, response.StatusCode(), response.String())
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("%w: 解析响应failed: %v", chaterrors.ErrGatewayUnavailable, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: 没有返回结果", chaterrors.ErrGatewayUnavailable)
	}

	return result.Choices[0].Message.Content, nil
}

// Model 返回模型名称
func (c *OpenAIClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *OpenAIClient) Provider() string {
	return c.provider
}
