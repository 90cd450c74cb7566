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
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	ctool "context-chatbot/internal/tool"
	chaterrors "context-chatbot/pkg/errors"
)

// stepCounter 单次请求内的工具调用计数，超过预算后所有调用失败
type stepCounter struct {
	limit int32
	used  atomic.Int32
}

type stepCounterKey struct{}

func withStepCounter(ctx context.Context, limit int) (context.Context, *stepCounter) {
	c := &stepCounter{limit: int32(limit)}
	return context.WithValue(ctx, stepCounterKey{}, c), c
}

func stepCounterFrom(ctx context.Context) *stepCounter {
	c, _ := ctx.Value(stepCounterKey{}).(*stepCounter)
	return c
}

// take 记录一次调用；返回 false 表示已超出预算
func (c *stepCounter) take() bool {
	return c.used.Add(1) <= c.limit
}

func (c *stepCounter) steps() int {
	return int(c.used.Load())
}

func (c *stepCounter) exceeded() bool {
	return c.used.Load() > c.limit
}

// runtimeTool 将 Runtime 级 tool.Tool 适配为 eino InvokableTool
type runtimeTool struct {
	inner ctool.Tool
}

// ToEinoTools 批量适配
func ToEinoTools(tools []ctool.Tool) []tool.BaseTool {
	out := make([]tool.BaseTool, 0, len(tools))
	for _, t := range tools {
		if t != nil {
			out = append(out, &runtimeTool{inner: t})
		}
	}
	return out
}

// Info 实现 tool.BaseTool
func (r *runtimeTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	s := r.inner.Schema()
	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}
	params := make(map[string]*schema.ParameterInfo, len(s.Properties))
	for name, p := range s.Properties {
		params[name] = &schema.ParameterInfo{
			Type:     dataType(p.Type),
			Desc:     p.Description,
			Required: required[name],
		}
	}
	return &schema.ToolInfo{
		Name:        r.inner.Name(),
		Desc:        r.inner.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

// InvokableRun 实现 tool.InvokableTool；参数非 JSON 时整体作为 input
func (r *runtimeTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	if c := stepCounterFrom(ctx); c != nil && !c.take() {
		return "", fmt.Errorf("%w: tool %s called after %d steps", chaterrors.ErrStepLimitExceeded, r.inner.Name(), c.limit)
	}

	input := map[string]any{}
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		input = map[string]any{"input": argumentsInJSON}
	}
	res, err := r.inner.Execute(ctx, input)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", r.inner.Name(), err)
	}
	if res.Err != "" {
		return "error: " + res.Err, nil
	}
	return res.Content, nil
}

func dataType(t string) schema.DataType {
	switch t {
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "object":
		return schema.Object
	case "array":
		return schema.Array
	default:
		return schema.String
	}
}
