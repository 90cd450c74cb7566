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

// Package search 提供尽力而为的网络检索：Tavily 优先，Wikipedia 兜底，均失败时返回无结果标记。
package search

import (
	"context"
	"strings"
	"time"

	"context-chatbot/pkg/log"
	"context-chatbot/pkg/metrics"
)

// NoResultMarker 所有后端都不可用时返回给调用方的文本
const NoResultMarker = "No relevant information found."

// Backend 单个检索后端；失败时返回 ErrSearchUnavailable 包装的错误
type Backend interface {
	Name() string
	Search(ctx context.Context, query string) (string, error)
}

// Chain 按顺序尝试多个后端，第一个成功的结果即返回；从不向调用方返回错误
type Chain struct {
	backends []Backend
	logger   *log.Logger
}

// NewChain 创建检索链；nil 后端会被忽略
func NewChain(logger *log.Logger, backends ...Backend) *Chain {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Chain{logger: logger}
	for _, b := range backends {
		if b != nil {
			c.backends = append(c.backends, b)
		}
	}
	return c
}

// Search 执行检索；空查询与全部失败均返回 NoResultMarker
func (c *Chain) Search(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return NoResultMarker
	}
	for _, b := range c.backends {
		start := time.Now()
		text, err := b.Search(ctx, query)
		if err == nil && strings.TrimSpace(text) != "" {
			metrics.SearchTotal.WithLabelValues(b.Name(), "success").Inc()
			return text
		}
		metrics.SearchTotal.WithLabelValues(b.Name(), "failure").Inc()
		c.logger.Warn("search backend failed",
			"backend", b.Name(), "elapsed_ms", time.Since(start).Milliseconds(), "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	metrics.SearchTotal.WithLabelValues("none", "no_result").Inc()
	return NoResultMarker
}

// Backends 返回已配置后端名称，按尝试顺序
func (c *Chain) Backends() []string {
	names := make([]string, 0, len(c.backends))
	for _, b := range c.backends {
		names = append(names, b.Name())
	}
	return names
}
