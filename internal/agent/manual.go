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

package agent

import (
	"context"
	"fmt"
	"strings"

	"context-chatbot/internal/runtime/eino"
	"context-chatbot/internal/tool/builtin"
)

// 提示用户自带背景的关键词
var contextCues = []string{
	"given that",
	"considering that",
	"as we know",
	"based on the following",
	"according to",
	"context:",
	"background:",
}

// minContextLen 少于此长度的前缀不视为背景
const minContextLen = 15

// ManualFrame 启发式拆分结果
type ManualFrame struct {
	Context    string
	Question   string
	HasContext bool
}

// FrameInput 不调用任何工具，按输入长度、问号前的句末标点与关键词猜测是否带背景
func FrameInput(text string) ManualFrame {
	text = strings.TrimSpace(text)
	frame := ManualFrame{Question: text}

	if q := strings.LastIndex(text, "?"); q > 0 {
		head := text[:q]
		if end := strings.LastIndexAny(head, ".!"); end > 0 {
			background := strings.TrimSpace(text[:end+1])
			question := strings.TrimSpace(text[end+1:])
			if len(background) >= minContextLen && question != "" {
				return ManualFrame{Context: background, Question: question, HasContext: true}
			}
		}
	}

	lower := strings.ToLower(text)
	for _, cue := range contextCues {
		at := strings.Index(lower, cue)
		if at < 0 {
			continue
		}
		frame.HasContext = true
		if background, question, ok := splitAtCue(text, at, len(cue)); ok {
			frame.Context = background
			frame.Question = question
		}
		return frame
	}
	return frame
}

// splitAtCue 背景从关键词开始，到其后第一个分隔符为止；其余部分为问题。
// 分不出来时 ok 为 false，由调用方只切换提示框架
func splitAtCue(text string, at, cueLen int) (string, string, bool) {
	rest := text[at+cueLen:]
	sep := strings.IndexAny(rest, ",;.\n")
	if sep < 0 {
		return "", "", false
	}
	end := at + cueLen + sep
	background := strings.TrimSpace(text[at:end])
	question := strings.TrimSpace(strings.TrimSpace(text[:at]) + " " + strings.TrimSpace(text[end+1:]))
	if len(background) < minContextLen || question == "" {
		return "", "", false
	}
	return background, question, true
}

// cueFramedPrompt 背景与问题混在同一句时的提示；原文只出现一次
func cueFramedPrompt(text string) string {
	return fmt.Sprintf(`The following message contains background information together with a question. Use that background to answer the question:

%s

Please provide a clear, informative answer that directly addresses the question using the background given in the message.`, text)
}

// ManualWorkflow 规则化的兜底流程：启发式框定 + 单次补全
type ManualWorkflow struct {
	gen builtin.PromptGenerator
}

// NewManualWorkflow 创建手工流程
func NewManualWorkflow(gen builtin.PromptGenerator) *ManualWorkflow {
	return &ManualWorkflow{gen: gen}
}

// Run 执行手工流程
func (m *ManualWorkflow) Run(ctx context.Context, text string) (string, error) {
	if m == nil || m.gen == nil {
		return "", ErrTierDisabled
	}
	frame := FrameInput(text)
	var prompt string
	switch {
	case frame.Context != "":
		prompt = eino.SynthesisPrompt(frame.Context, frame.Question)
	case frame.HasContext:
		prompt = cueFramedPrompt(frame.Question)
	default:
		prompt = eino.SynthesisPrompt("", frame.Question)
	}
	answer, err := m.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("manual completion: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("manual completion: empty answer")
	}
	return answer, nil
}
