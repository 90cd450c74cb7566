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
	"time"

	"context-chatbot/internal/search"
	"context-chatbot/internal/tool"
	"context-chatbot/pkg/metrics"
	"context-chatbot/pkg/tracing"
)

// WebSearchName 工具名
const WebSearchName = "web_search"

// Searcher 尽力而为的检索；实现方保证不返回错误（由 search.Chain 实现）
type Searcher interface {
	Search(ctx context.Context, query string) string
}

// WebSearch 在缺少上下文时检索外部信息
type WebSearch struct {
	searcher Searcher
}

// NewWebSearch 创建网络检索工具
func NewWebSearch(searcher Searcher) *WebSearch {
	return &WebSearch{searcher: searcher}
}

// Name 实现 tool.Tool
func (t *WebSearch) Name() string { return WebSearchName }

// Description 实现 tool.Tool
func (t *WebSearch) Description() string {
	return "Searches the web (Tavily or Wikipedia) for information about a topic. Use it when the user's message lacks sufficient context."
}

// Schema 实现 tool.Tool
func (t *WebSearch) Schema() tool.Schema {
	return tool.Schema{
		Type:        "object",
		Description: "检索参数",
		Properties: map[string]tool.SchemaProperty{
			"query": {Type: "string", Description: "search query"},
		},
		Required: []string{"query"},
	}
}

// Search 返回检索文本，从不失败
func (t *WebSearch) Search(ctx context.Context, query string) string {
	if t.searcher == nil {
		return search.NoResultMarker
	}
	ctx, span := tracing.StartToolSpan(ctx, WebSearchName)
	start := time.Now()
	out := t.searcher.Search(ctx, query)
	metrics.ToolDuration.WithLabelValues(WebSearchName).Observe(time.Since(start).Seconds())
	tracing.EndSpan(span, nil)
	return out
}

// Execute 实现 tool.Tool
func (t *WebSearch) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	text := t.Search(ctx, inputString(input, "query", "input"))
	return tool.ToolResult{Kind: tool.KindSearchResult, Content: text}, nil
}
