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

// RelevanceCheckerName 工具名
const RelevanceCheckerName = "context_relevance_checker"

// RelevanceChecker 判断上下文是否与问题相关
type RelevanceChecker struct {
	gen PromptGenerator
	def tool.Kind
}

// NewRelevanceChecker 创建相关性检查工具；def 为失败或输出不明确时的安全默认值
func NewRelevanceChecker(gen PromptGenerator, def tool.Kind) *RelevanceChecker {
	if def != tool.KindIrrelevant {
		def = tool.KindRelevant
	}
	return &RelevanceChecker{gen: gen, def: def}
}

// Name 实现 tool.Tool
func (t *RelevanceChecker) Name() string { return RelevanceCheckerName }

// Description 实现 tool.Tool
func (t *RelevanceChecker) Description() string {
	return "Checks whether the given context is relevant to the question. Use it after context_presence_judge reports context_provided. Returns 'relevant' or 'irrelevant'."
}

// Schema 实现 tool.Tool
func (t *RelevanceChecker) Schema() tool.Schema {
	return tool.Schema{
		Type:        "object",
		Description: "相关性检查参数",
		Properties: map[string]tool.SchemaProperty{
			"context":  {Type: "string", Description: "background context"},
			"question": {Type: "string", Description: "the question to answer"},
		},
		Required: []string{"question"},
	}
}

// Check 空问题返回 irrelevant；空上下文返回 relevant；两者都不调用模型
func (t *RelevanceChecker) Check(ctx context.Context, background, question string) tool.Kind {
	if strings.TrimSpace(question) == "" {
		return tool.KindIrrelevant
	}
	if strings.TrimSpace(background) == "" {
		return tool.KindRelevant
	}
	if t.gen == nil {
		return fallback(ctx, RelevanceCheckerName, "unconfigured", t.def, nil)
	}
	out, err := generate(ctx, RelevanceCheckerName, t.gen, render(relevancePrompt, map[string]string{
		"context":  strings.TrimSpace(background),
		"question": strings.TrimSpace(question),
	}))
	if err != nil {
		return fallback(ctx, RelevanceCheckerName, "gateway", t.def, err)
	}

	lower := strings.ToLower(out)
	switch {
	case strings.Contains(lower, "irrelevant"):
		return tool.KindIrrelevant
	case strings.Contains(lower, "relevant"):
		return tool.KindRelevant
	default:
		return fallback(ctx, RelevanceCheckerName, "unclear", t.def, nil)
	}
}

// Execute 实现 tool.Tool；也接受 "Context: ... Question: ..." 形式的单个 input
func (t *RelevanceChecker) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	background := inputString(input, "context")
	question := inputString(input, "question")
	if question == "" {
		background, question = parseContextQuestion(inputString(input, "input"))
	}
	kind := t.Check(ctx, background, question)
	return tool.ToolResult{Kind: kind, Content: string(kind)}, nil
}

// parseContextQuestion 解析 "Context: <c> Question: <q>"；无此结构时整体视为问题
func parseContextQuestion(s string) (string, string) {
	s = strings.TrimSpace(s)
	ci := strings.Index(s, "Context:")
	qi := strings.Index(s, "Question:")
	if ci < 0 || qi < 0 || qi < ci {
		return "", s
	}
	return strings.TrimSpace(s[ci+len("Context:") : qi]), strings.TrimSpace(s[qi+len("Question:"):])
}
