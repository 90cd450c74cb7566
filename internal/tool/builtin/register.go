package builtin

import (
	"context-chatbot/internal/tool"
	"context-chatbot/internal/tool/registry"
)

// ContextTools 四个上下文工具的具体类型，供脚本化工作流直接调用
type ContextTools struct {
	Presence  *PresenceJudge
	Relevance *RelevanceChecker
	Splitter  *Splitter
	Search    *WebSearch
}

// Defaults 工具失败时的安全默认值
type Defaults struct {
	Presence  tool.Kind
	Relevance tool.Kind
}

// NewContextTools 基于同一个生成器与检索器装配四个工具
func NewContextTools(gen PromptGenerator, searcher Searcher, defaults Defaults) *ContextTools {
	return &ContextTools{
		Presence:  NewPresenceJudge(gen, defaults.Presence),
		Relevance: NewRelevanceChecker(gen, defaults.Relevance),
		Splitter:  NewSplitter(gen),
		Search:    NewWebSearch(searcher),
	}
}

// All 以 tool.Tool 形式返回全部工具
func (c *ContextTools) All() []tool.Tool {
	return []tool.Tool{c.Presence, c.Splitter, c.Search, c.Relevance}
}

// RegisterBuiltin 将上下文工具注册到 ToolRegistry
func RegisterBuiltin(reg *registry.Registry, tools *ContextTools) {
	if reg == nil || tools == nil {
		return
	}
	for _, t := range tools.All() {
		reg.Register(t)
	}
}
