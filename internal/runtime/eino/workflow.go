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

package eino

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"context-chatbot/internal/search"
	ctool "context-chatbot/internal/tool"
	"context-chatbot/internal/tool/builtin"
)

// 脚本化工作流节点
const (
	NodeJudge      = "judge"
	NodeSearch     = "search"
	NodeSplit      = "split"
	NodeRelevance  = "relevance"
	NodeSynthesize = "synthesize"
)

// ScriptedState 在图中逐节点传递的状态
type ScriptedState struct {
	Input      string     `json:"input"`
	Presence   ctool.Kind `json:"presence,omitempty"`
	SearchRan  bool       `json:"search_ran,omitempty"`
	SearchText string     `json:"search_text,omitempty"`
	Context    string     `json:"context,omitempty"`
	Question   string     `json:"question,omitempty"`
	Relevance  ctool.Kind `json:"relevance,omitempty"`
	Final      string     `json:"final_context,omitempty"`
	Answer     string     `json:"answer,omitempty"`
}

// ScriptedWorkflow 固定顺序的工具调用链：
// judge -> search（仅 context_missing）-> split -> relevance -> synthesize。
// 工具失败按安全默认值继续，只有合成调用失败才会使整个工作流失败。
type ScriptedWorkflow struct {
	tools    *builtin.ContextTools
	gen      builtin.PromptGenerator
	runnable compose.Runnable[*ScriptedState, *ScriptedState]
}

// NewScriptedWorkflow 构建并编译工作流图
func NewScriptedWorkflow(ctx context.Context, gen builtin.PromptGenerator, tools *builtin.ContextTools) (*ScriptedWorkflow, error) {
	if tools == nil {
		tools = builtin.NewContextTools(gen, nil, builtin.Defaults{})
	}
	w := &ScriptedWorkflow{tools: tools, gen: gen}

	g := compose.NewGraph[*ScriptedState, *ScriptedState]()
	nodes := []struct {
		name string
		fn   func(context.Context, *ScriptedState) (*ScriptedState, error)
	}{
		{NodeJudge, w.judge},
		{NodeSearch, w.search},
		{NodeSplit, w.split},
		{NodeRelevance, w.relevance},
		{NodeSynthesize, w.synthesize},
	}
	prev := compose.START
	for _, n := range nodes {
		if err := g.AddLambdaNode(n.name, compose.InvokableLambda(n.fn)); err != nil {
			return nil, fmt.Errorf("添加节点 %s 失败: %w", n.name, err)
		}
		if err := g.AddEdge(prev, n.name); err != nil {
			return nil, fmt.Errorf("连接 %s->%s 失败: %w", prev, n.name, err)
		}
		prev = n.name
	}
	if err := g.AddEdge(prev, compose.END); err != nil {
		return nil, fmt.Errorf("连接 %s->END 失败: %w", prev, err)
	}

	runnable, err := g.Compile(ctx, compose.WithGraphName("scripted_workflow"))
	if err != nil {
		return nil, fmt.Errorf("compile scripted workflow: %w", err)
	}
	w.runnable = runnable
	return w, nil
}

// Run 执行工作流，返回最终状态（含答案）
func (w *ScriptedWorkflow) Run(ctx context.Context, input string) (*ScriptedState, error) {
	return w.runnable.Invoke(ctx, &ScriptedState{Input: input})
}

func (w *ScriptedWorkflow) judge(ctx context.Context, s *ScriptedState) (*ScriptedState, error) {
	s.Presence = w.tools.Presence.Judge(ctx, s.Input)
	return s, nil
}

// search 对原始输入至多检索一次
func (w *ScriptedWorkflow) search(ctx context.Context, s *ScriptedState) (*ScriptedState, error) {
	if s.Presence != ctool.KindContextMissing {
		return s, nil
	}
	s.SearchRan = true
	s.SearchText = w.tools.Search.Search(ctx, s.Input)
	return s, nil
}

func (w *ScriptedWorkflow) split(ctx context.Context, s *ScriptedState) (*ScriptedState, error) {
	s.Context, s.Question = w.tools.Splitter.Split(ctx, s.Input)
	if strings.TrimSpace(s.Question) == "" {
		s.Question = s.Input
	}
	return s, nil
}

// relevance 用户上下文在前，检索结果空行后追加；不相关时整体丢弃
func (w *ScriptedWorkflow) relevance(ctx context.Context, s *ScriptedState) (*ScriptedState, error) {
	parts := make([]string, 0, 2)
	if c := strings.TrimSpace(s.Context); c != "" {
		parts = append(parts, c)
	}
	if t := strings.TrimSpace(s.SearchText); s.SearchRan && t != "" && t != search.NoResultMarker {
		parts = append(parts, t)
	}
	assembled := strings.Join(parts, "\n\n")

	s.Relevance = w.tools.Relevance.Check(ctx, assembled, s.Question)
	if s.Relevance == ctool.KindIrrelevant {
		assembled = ""
	}
	s.Final = assembled
	return s, nil
}

func (w *ScriptedWorkflow) synthesize(ctx context.Context, s *ScriptedState) (*ScriptedState, error) {
	if w.gen == nil {
		return nil, fmt.Errorf("synthesis: generator not configured")
	}
	answer, err := w.gen.Generate(ctx, SynthesisPrompt(s.Final, s.Question))
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	s.Answer = strings.TrimSpace(answer)
	if s.Answer == "" {
		return nil, fmt.Errorf("synthesis: empty answer")
	}
	return s, nil
}

// SynthesisPrompt 组合问题与上下文的最终提示；无上下文时要求基于自身知识回答
func SynthesisPrompt(background, question string) string {
	if strings.TrimSpace(background) != "" {
		return fmt.Sprintf(`Based on the following context, please provide a comprehensive answer to the user's question:

Context:
%s

Question: %s

Please provide a clear, informative answer that directly addresses the question using the provided context.`, background, question)
	}
	return fmt.Sprintf(`Please answer the following question based on your knowledge:

Question: %s

Provide a helpful and informative answer. If you need more specific context to give a better answer, please mention what additional information would be helpful.`, question)
}
