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

package model

import (
	"fmt"
	"sync"

	"context-chatbot/internal/model/llm"
)

// Registry 模型注册表，按 provider/model 复用 LLM 客户端
type Registry struct {
	mu      sync.RWMutex
	clients map[string]llm.Client
	factory func(llm.ClientConfig) (llm.Client, error)
}

// NewRegistry 创建注册表；factory 为空时使用 llm.NewClient
func NewRegistry(factory func(llm.ClientConfig) (llm.Client, error)) *Registry {
	if factory == nil {
		factory = llm.NewClient
	}
	return &Registry{
		clients: make(map[string]llm.Client),
		factory: factory,
	}
}

// Key 返回客户端在注册表中的名称
func Key(provider, model string) string {
	if provider == "" {
		provider = "ollama"
	}
	return provider + "/" + model
}

// RegisterLLM 注册 LLM 实现
func (r *Registry) RegisterLLM(name string, c llm.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = c
}

// GetLLM 按名称获取 LLM
func (r *Registry) GetLLM(name string) (llm.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("LLM not registered: %s", name)
	}
	return c, nil
}

// LLM 获取或创建 cfg 对应的客户端
func (r *Registry) LLM(cfg llm.ClientConfig) (llm.Client, error) {
	name := Key(cfg.Provider, cfg.Model)
	if c, err := r.GetLLM(name); err == nil {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[name]; ok {
		return c, nil
	}
	c, err := r.factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("create llm %s: %w", name, err)
	}
	r.clients[name] = c
	return c, nil
}

// Names 返回已注册的名称
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}
