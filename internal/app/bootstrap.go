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

package app

import (
	"context"
	"fmt"

	"context-chatbot/internal/agent"
	"context-chatbot/internal/model"
	"context-chatbot/internal/runtime/eino"
	"context-chatbot/internal/runtime/session"
	"context-chatbot/internal/search"
	"context-chatbot/internal/tool"
	"context-chatbot/internal/tool/builtin"
	"context-chatbot/internal/tool/registry"
	"context-chatbot/pkg/config"
	"context-chatbot/pkg/log"
	"context-chatbot/pkg/secrets"
)

// Bootstrap 统一初始化：供 api、cli local 与 devops 复用，避免在 cmd 内装配业务
type Bootstrap struct {
	Config     *config.Config
	Logger     *log.Logger
	Secrets    secrets.Store
	Models     *model.Registry
	Generator  builtin.PromptGenerator
	Search     *search.Chain
	Tools      *builtin.ContextTools
	Registry   *registry.Registry
	Engine     *eino.Engine
	Sessions   *session.Manager
	Controller *agent.Controller
}

// NewBootstrap 根据配置装配：日志 -> secrets -> 模型网关 -> 搜索 -> 工具 -> eino 引擎 -> 会话 -> 降级控制器
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logCfg := &log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	store, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.Vault.Address,
			Token:      cfg.Secrets.Vault.Token,
			PathPrefix: cfg.Secrets.Vault.PathPrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 secret store failed: %w", err)
	}

	models := model.NewRegistry(nil)
	gateway, err := NewGatewayFromConfig(ctx, cfg, store, models)
	if err != nil {
		return nil, fmt.Errorf("初始化模型网关failed: %w", err)
	}

	chain := NewSearchFromConfig(ctx, cfg, store, logger)
	tools := builtin.NewContextTools(gateway, chain, builtin.Defaults{
		Presence:  tool.ParseKind(cfg.Fallback.Defaults.Presence, tool.KindContextMissing),
		Relevance: tool.ParseKind(cfg.Fallback.Defaults.Relevance, tool.KindRelevant),
	})
	reg := registry.New()
	builtin.RegisterBuiltin(reg, tools)
	if raw, err := reg.SchemasForLLM(); err == nil {
		logger.Debug("上下文工具已注册", "schemas", string(raw))
	}

	engine, err := eino.NewEngine(ctx, cfg, logger, nil, gateway, tools)
	if err != nil {
		return nil, fmt.Errorf("初始化 eino 引擎failed: %w", err)
	}

	sessionStore, err := NewSessionStoreFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化会话存储failed: %w", err)
	}
	sessions := session.NewManager(sessionStore)

	deps := agent.Deps{
		Tools:     reg.List(),
		Scripted:  engine.Scripted,
		Generator: gateway,
		Sessions:  sessions,
		Logger:    logger,
	}
	// 避免把 nil *AgentReasoner 装入接口
	if engine.AgentReady() {
		deps.Reasoner = engine.Reasoner
	}
	controller := agent.NewController(deps, agent.OptionsFromConfig(cfg))

	logger.Info("应用初始化完成",
		"model", gateway.Model(),
		"agent", controller.AgentReady(),
		"search", chain.Backends(),
		"session_store", cfg.Session.Store)

	return &Bootstrap{
		Config:     cfg,
		Logger:     logger,
		Secrets:    store,
		Models:     models,
		Generator:  gateway,
		Search:     chain,
		Tools:      tools,
		Registry:   reg,
		Engine:     engine,
		Sessions:   sessions,
		Controller: controller,
	}, nil
}

// Close 释放会话存储与引擎
func (b *Bootstrap) Close(ctx context.Context) error {
	var firstErr error
	if b.Sessions != nil {
		if err := b.Sessions.Close(ctx); err != nil {
			firstErr = err
		}
	}
	if b.Engine != nil {
		if err := b.Engine.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
