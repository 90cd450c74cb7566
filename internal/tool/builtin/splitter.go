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
	"fmt"
	"strings"
	"unicode"

	"context-chatbot/internal/tool"
)

// SplitterName 工具名
const SplitterName = "context_splitter"

var (
	simpleQuestionPrefixes = []string{"what is", "what are", "how do", "how does", "why", "when", "where", "is", "are", "do", "does"}
	backgroundMarkers      = []string{"given that", "since", "because", "as we know", "considering that", "is a", "are a", "defined as", "refers to", "means that"}
)

// Splitter 将用户输入拆分为 (背景上下文, 问题)
type Splitter struct {
	gen PromptGenerator
}

// NewSplitter 创建上下文拆分工具
func NewSplitter(gen PromptGenerator) *Splitter {
	return &Splitter{gen: gen}
}

// Name 实现 tool.Tool
func (t *Splitter) Name() string { return SplitterName }

// Description 实现 tool.Tool
func (t *Splitter) Description() string {
	return "Splits a user message into its background context and the actual question. Returns 'Context: <context>\\nQuestion: <question>'."
}

// Schema 实现 tool.Tool
func (t *Splitter) Schema() tool.Schema {
	return tool.Schema{
		Type:        "object",
		Description: "拆分参数",
		Properties: map[string]tool.SchemaProperty{
			"input": {Type: "string", Description: "the full user message"},
		},
		Required: []string{"input"},
	}
}

// Split 无法可靠拆分时返回 ("", 原始输入)
func (t *Splitter) Split(ctx context.Context, text string) (string, string) {
	input := strings.TrimSpace(text)
	if input == "" {
		return "", ""
	}
	if isSimpleQuestion(input) {
		return "", input
	}
	if t.gen == nil {
		fallback(ctx, SplitterName, "unconfigured", tool.KindSplit, nil)
		return "", input
	}

	out, err := generate(ctx, SplitterName, t.gen, render(splitterPrompt, map[string]string{"input": input}))
	if err != nil {
		fallback(ctx, SplitterName, "gateway", tool.KindSplit, err)
		return "", input
	}
	background, question, ok := parseSplit(out, input)
	if !ok {
		fallback(ctx, SplitterName, "unclear", tool.KindSplit, nil)
		return "", input
	}
	return background, question
}

// Execute 实现 tool.Tool
func (t *Splitter) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	background, question := t.Split(ctx, inputString(input, "input", "text"))
	return tool.ToolResult{
		Kind:     tool.KindSplit,
		Content:  fmt.Sprintf("Context: %s\nQuestion: %s", background, question),
		Context:  background,
		Question: question,
	}, nil
}

// isSimpleQuestion 以简单疑问词开头、无背景标记且不含句点的输入跳过模型调用
func isSimpleQuestion(input string) bool {
	lower := strings.ToLower(input)
	if strings.Contains(lower, ".") {
		return false
	}
	for _, m := range backgroundMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	for _, p := range simpleQuestionPrefixes {
		if hasWordPrefix(lower, p) {
			return true
		}
	}
	return false
}

// hasWordPrefix 前缀之后必须是词边界（"is" 不匹配 "island"）
func hasWordPrefix(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	rest := s[len(prefix):]
	if rest == "" {
		return true
	}
	r := []rune(rest)[0]
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
}

// parseSplit 解析 CONTEXT:/QUESTION: 块；过短或只是复述输入的上下文会被丢弃
func parseSplit(out, input string) (string, string, bool) {
	ci := strings.Index(out, "CONTEXT:")
	qi := strings.Index(out, "QUESTION:")
	if ci < 0 || qi < 0 || qi < ci {
		return "", "", false
	}
	background := strings.TrimSpace(out[ci+len("CONTEXT:") : qi])
	question := strings.TrimSpace(out[qi+len("QUESTION:"):])

	if background != "" {
		lc, li := strings.ToLower(background), strings.ToLower(input)
		echo := len(background) < 15 || strings.Contains(li, lc) || strings.Contains(lc, li)
		if echo && float64(len(background)) < float64(len(input))*0.3 {
			background = ""
		}
	}
	if question == "" {
		question = input
	}
	return background, question, true
}
