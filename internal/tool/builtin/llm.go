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

package builtin

import (
	"context"
	"strings"
	"time"

	"context-chatbot/internal/tool"
	chaterrors "context-chatbot/pkg/errors"
	"context-chatbot/pkg/log"
	"context-chatbot/pkg/metrics"
	"context-chatbot/pkg/tracing"
)

// PromptGenerator 生成文本的接口（由 llm.Gateway 实现）
type PromptGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// generate 单次补全调用，带工具级 span 与耗时指标；不重试
func generate(ctx context.Context, toolName string, gen PromptGenerator, prompt string) (string, error) {
	ctx, span := tracing.StartToolSpan(ctx, toolName)
	start := time.Now()
	out, err := gen.Generate(ctx, prompt)
	metrics.ToolDuration.WithLabelValues(toolName).Observe(time.Since(start).Seconds())
	tracing.EndSpan(span, err)
	return out, err
}

// fallback 记录一次安全默认值的启用
func fallback(ctx context.Context, toolName, reason string, def tool.Kind, err error) tool.Kind {
	if err == nil && reason == "unclear" {
		err = chaterrors.ErrToolParse
	}
	metrics.ToolFallbackTotal.WithLabelValues(toolName, reason).Inc()
	log.FromContext(ctx, nil).Debug("tool fell back to safe default",
		"tool", toolName, "reason", reason, "default", string(def), "error", err)
	return def
}

// inputString 从工具入参中取第一个非空字符串字段
func inputString(input map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := input[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
