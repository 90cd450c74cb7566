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
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	ctool "context-chatbot/internal/tool"
	chaterrors "context-chatbot/pkg/errors"
	"context-chatbot/pkg/log"
)

const agentInstruction = `You are an intelligent assistant that decides on your own which tools to use to answer the user's question.

You have access to these tools:
- context_presence_judge: determine if the user provided sufficient context
- context_splitter: separate background information from the actual question
- web_search: search for information when you need external knowledge
- context_relevance_checker: check if context is relevant to the question

Think step by step, call only the tools that help, then give a clear and complete final answer to the user.`

// Reasoner 推理编排契约：给定文本、工具集与步数预算，产出最终答案，
// 或返回 ErrStepLimitExceeded / ErrOrchestratorParse
type Reasoner interface {
	Attempt(ctx context.Context, text string, tools []ctool.Tool, stepBudget int) (*RunResult, error)
}

// RunResult 推理结果
type RunResult struct {
	Answer string
	Steps  int
}

// AgentReasoner 基于 eino adk ChatModelAgent 的推理实现
type AgentReasoner struct {
	model  model.ToolCallingChatModel
	logger *log.Logger
}

// NewAgentReasoner 创建推理器
func NewAgentReasoner(chatModel model.ToolCallingChatModel, logger *log.Logger) *AgentReasoner {
	if logger == nil {
		logger = log.Discard()
	}
	return &AgentReasoner{model: chatModel, logger: logger}
}

// Attempt 实现 Reasoner；stepBudget 限制本次请求的工具调用总次数
func (r *AgentReasoner) Attempt(ctx context.Context, text string, tools []ctool.Tool, stepBudget int) (*RunResult, error) {
	if r == nil || r.model == nil {
		return nil, fmt.Errorf("%w: no chat model", chaterrors.ErrGatewayUnavailable)
	}
	if stepBudget <= 0 {
		stepBudget = 5
	}

	ctx, counter := withStepCounter(ctx, stepBudget)
	agent, err := adk.NewChatModelAgent(ctx, &adk.ChatModelAgentConfig{
		Name:        "context_aware_assistant",
		Description: "answers questions using context tools",
		Instruction: agentInstruction,
		Model:       r.model,
		ToolsConfig: adk.ToolsConfig{
			ToolsNodeConfig: compose.ToolsNodeConfig{
				Tools: ToEinoTools(tools),
			},
		},
		// 每轮模型调用至多对应一次工具调用批次；超出预算由 stepCounter 截断
		MaxIterations: stepBudget + 2,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 ChatModelAgent 失败: %w", err)
	}

	runner := adk.NewRunner(ctx, adk.RunnerConfig{Agent: agent})
	iter := runner.Query(ctx, text)

	var (
		answer string
		runErr error
	)
	for {
		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			runErr = event.Err
			continue
		}
		if event.Output == nil || event.Output.MessageOutput == nil {
			continue
		}
		msg, err := event.Output.MessageOutput.GetMessage()
		if err != nil {
			runErr = err
			continue
		}
		if msg == nil || msg.Role != schema.Assistant || len(msg.ToolCalls) > 0 {
			continue
		}
		if content := strings.TrimSpace(msg.Content); content != "" {
			answer = content
		}
	}

	steps := counter.steps()
	if counter.exceeded() {
		return nil, fmt.Errorf("%w: budget %d", chaterrors.ErrStepLimitExceeded, stepBudget)
	}
	if runErr != nil {
		if isIterationLimit(runErr) {
			return nil, fmt.Errorf("%w: %v", chaterrors.ErrStepLimitExceeded, runErr)
		}
		return nil, fmt.Errorf("agent run: %w", runErr)
	}
	if answer == "" {
		return nil, fmt.Errorf("%w: no final answer after %d steps", chaterrors.ErrOrchestratorParse, steps)
	}

	r.logger.Debug("agent produced final answer", "steps", steps)
	return &RunResult{Answer: answer, Steps: steps}, nil
}

func isIterationLimit(err error) bool {
	if errors.Is(err, chaterrors.ErrStepLimitExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "max iterations") || strings.Contains(msg, "max steps")
}
