package tool

import (
	"context"
)

// Schema 表示工具的 JSON Schema（供 LLM function-calling 使用）
type Schema struct {
	Type        string                    `json:"type,omitempty"`
	Description string                    `json:"description,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
}

// SchemaProperty 表示 Schema 中单个属性的描述
type SchemaProperty struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Kind ToolResult 的判别标签
type Kind string

const (
	KindContextMissing  Kind = "context_missing"
	KindContextProvided Kind = "context_provided"
	KindRelevant        Kind = "relevant"
	KindIrrelevant      Kind = "irrelevant"
	KindSearchResult    Kind = "search_result"
	KindSplit           Kind = "split"
)

// ToolResult 工具执行结果（按 Kind 区分的联合体）。
// Content 总是给推理模型看的文本形式；Context/Question 仅在 KindSplit 时有值。
// 结果即产即用，不做持久化。
type ToolResult struct {
	Kind     Kind   `json:"kind,omitempty"`
	Content  string `json:"content"`
	Context  string `json:"context,omitempty"`
	Question string `json:"question,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Tool Runtime 级工具接口
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	Execute(ctx context.Context, input map[string]any) (ToolResult, error)
}

// ParseKind 将配置中的字符串解析为 Kind；无法识别时返回 def
func ParseKind(s string, def Kind) Kind {
	switch k := Kind(s); k {
	case KindContextMissing, KindContextProvided, KindRelevant, KindIrrelevant:
		return k
	default:
		return def
	}
}
