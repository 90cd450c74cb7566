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

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"context-chatbot/internal/tool/builtin"
	"context-chatbot/pkg/config"
	"context-chatbot/pkg/log"
)

// Engine eino 运行时：推理 Agent（adk）与脚本化工作流（compose Graph）
type Engine struct {
	config   *config.Config
	logger   *log.Logger
	Reasoner *AgentReasoner
	Scripted *ScriptedWorkflow
}

// NewEngine 创建引擎；chatModel 为 nil 时按配置创建 OpenAI 兼容 ChatModel
func NewEngine(ctx context.Context, cfg *config.Config, logger *log.Logger, chatModel model.ToolCallingChatModel, gen builtin.PromptGenerator, tools *builtin.ContextTools) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.Discard()
	}

	e := &Engine{config: cfg, logger: logger}

	if cfg.AgentEnabled() {
		if chatModel == nil {
			cm, err := NewChatModel(ctx, cfg.Model.LLM)
			if err != nil {
				// Agent 层不可用不影响后续层
				logger.Warn("创建 ChatModel failed，Agent 层禁用", "error", err)
			} else {
				chatModel = cm
			}
		}
		if chatModel != nil {
			e.Reasoner = NewAgentReasoner(chatModel, logger)
		}
	}

	scripted, err := NewScriptedWorkflow(ctx, gen, tools)
	if err != nil {
		return nil, fmt.Errorf("编译脚本化工作流failed: %w", err)
	}
	e.Scripted = scripted

	logger.Info("eino 引擎初始化成功", "agent", e.Reasoner != nil)
	return e, nil
}

// NewChatModel 创建 OpenAI 兼容 ChatModel；provider 为 ollama 时使用其 /v1 端点
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (model.ToolCallingChatModel, error) {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Provider == "" || cfg.Provider == "ollama" {
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL += "/v1"
		}
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		// Ollama 不校验 key，但客户端要求非空
		apiKey = "ollama"
	}

	mc := &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  apiKey,
		BaseURL: baseURL,
		Timeout: config.ParseDuration(cfg.Timeout, 0),
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		mc.MaxTokens = &maxTokens
	}
	if cfg.Temperature > 0 {
		temp := float32(cfg.Temperature)
		mc.Temperature = &temp
	}

	chatModel, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	return chatModel, nil
}

// AgentReady Agent 层是否可用
func (e *Engine) AgentReady() bool {
	return e != nil && e.Reasoner != nil
}

// Shutdown 关闭 eino 引擎
func (e *Engine) Shutdown() error {
	e.logger.Info("eino 引擎关闭成功")
	return nil
}
