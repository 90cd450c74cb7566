package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaClient 本地 Ollama 原生客户端（/api/chat，非流式）
type OllamaClient struct {
	model  string
	host   string
	client *ollama.Client
}

// NewOllamaClient 创建 Ollama 客户端；host 为空时读取 OLLAMA_HOST，默认 http://localhost:11434
func NewOllamaClient(model, host string, timeout time.Duration) (*OllamaClient, error) {
	if model == "" {
		model = "llama3"
	}
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OllamaClient{
		model:  model,
		host:   host,
		client: ollama.NewClient(u, &http.Client{Timeout: timeout}),
	}, nil
}

// GenerateWithContext 单轮补全
func (c *OllamaClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []Message{{Role: "user", Content: prompt}}, options)
}

// ChatWithContext 多轮对话补全
func (c *OllamaClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	msgs := make([]ollama.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, ollama.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	req := &ollama.ChatRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   &stream,
		Options:  ollamaOptions(options),
	}

	var text strings.Builder
	err := c.client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", classifyError(ctx, fmt.Errorf("调用 ollama chat failed: %w", err))
	}
	return text.String(), nil
}

// Model 返回模型名称
func (c *OllamaClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *OllamaClient) Provider() string {
	return "ollama"
}

func ollamaOptions(options GenerateOptions) map[string]any {
	opts := make(map[string]any)
	if options.Temperature > 0 {
		opts["temperature"] = options.Temperature
	}
	if options.MaxTokens > 0 {
		opts["num_predict"] = options.MaxTokens
	}
	if options.TopP > 0 {
		opts["top_p"] = options.TopP
	}
	if len(options.Stop) > 0 {
		opts["stop"] = options.Stop
	}
	return opts
}
