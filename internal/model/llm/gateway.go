// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	chaterrors "context-chatbot/pkg/errors"
	"context-chatbot/pkg/metrics"
)

// Gateway 语言模型网关：complete(prompt) -> text。
// 每次调用都带独立超时；失败统一归类为 ErrGatewayTimeout 或 ErrGatewayUnavailable，不做重试。
type Gateway struct {
	client  Client
	timeout time.Duration
	options GenerateOptions
}

// NewGateway 创建网关；timeout<=0 时仅依赖调用方 ctx
func NewGateway(client Client, timeout time.Duration, options GenerateOptions) *Gateway {
	return &Gateway{client: client, timeout: timeout, options: options}
}

// Generate 实现 builtin.PromptGenerator
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.client == nil {
		return "", fmt.Errorf("%w: no client configured", chaterrors.ErrGatewayUnavailable)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	provider := g.client.Provider()
	start := time.Now()
	text, err := g.client.GenerateWithContext(ctx, prompt, g.options)
	metrics.LLMDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	if err != nil {
		err = classifyError(ctx, err)
		metrics.LLMRequestsTotal.WithLabelValues(provider, outcome(err)).Inc()
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		metrics.LLMRequestsTotal.WithLabelValues(provider, "unavailable").Inc()
		return "", fmt.Errorf("%w: empty completion", chaterrors.ErrGatewayUnavailable)
	}
	metrics.LLMRequestsTotal.WithLabelValues(provider, "success").Inc()
	return text, nil
}

// Model 返回底层模型名称
func (g *Gateway) Model() string {
	if g == nil || g.client == nil {
		return ""
	}
	return g.client.Model()
}

func outcome(err error) string {
	if errors.Is(err, chaterrors.ErrGatewayTimeout) {
		return "timeout"
	}
	return "unavailable"
}
