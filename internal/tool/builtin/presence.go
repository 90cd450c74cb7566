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

	"context-chatbot/internal/tool"
)

// PresenceJudgeName 工具名
const PresenceJudgeName = "context_presence_judge"

// PresenceJudge 判断用户输入是否自带背景上下文
type PresenceJudge struct {
	gen PromptGenerator
	def tool.Kind
}

// NewPresenceJudge 创建上下文存在性判断工具；def 为失败或输出不明确时的安全默认值
func NewPresenceJudge(gen PromptGenerator, def tool.Kind) *PresenceJudge {
	if def != tool.KindContextProvided {
		def = tool.KindContextMissing
	}
	return &PresenceJudge{gen: gen, def: def}
}

// Name 实现 tool.Tool
func (t *PresenceJudge) Name() string { return PresenceJudgeName }

// Description 实现 tool.Tool
func (t *PresenceJudge) Description() string {
	return "Analyzes the user's message to decide whether it already contains background context. Returns 'context_provided' or 'context_missing'."
}

// Schema 实现 tool.Tool
func (t *PresenceJudge) Schema() tool.Schema {
	return tool.Schema{
		Type:        "object",
		Description: "判断参数",
		Properties: map[string]tool.SchemaProperty{
			"input": {Type: "string", Description: "the full user message"},
		},
		Required: []string{"input"},
	}
}

// Judge 单次补全判断；空输入直接返回 context_missing，不调用模型
func (t *PresenceJudge) Judge(ctx context.Context, text string) tool.Kind {
	if strings.TrimSpace(text) == "" {
		return tool.KindContextMissing
	}
	if t.gen == nil {
		return fallback(ctx, PresenceJudgeName, "unconfigured", t.def, nil)
	}
	out, err := generate(ctx, PresenceJudgeName, t.gen, render(presencePrompt, map[string]string{"input": text}))
	if err != nil {
		return fallback(ctx, PresenceJudgeName, "gateway", t.def, err)
	}
	return t.parse(ctx, out)
}

func (t *PresenceJudge) parse(ctx context.Context, out string) tool.Kind {
	lower := strings.ToLower(out)
	switch {
	case strings.Contains(lower, string(tool.KindContextProvided)):
		return tool.KindContextProvided
	case strings.Contains(lower, string(tool.KindContextMissing)):
		return tool.KindContextMissing
	default:
		return fallback(ctx, PresenceJudgeName, "unclear", t.def, nil)
	}
}

// Execute 实现 tool.Tool；失败从不向上返回错误
func (t *PresenceJudge) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	kind := t.Judge(ctx, inputString(input, "input", "text", "query"))
	return tool.ToolResult{Kind: kind, Content: string(kind)}, nil
}
