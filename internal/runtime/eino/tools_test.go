package eino

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctool "context-chatbot/internal/tool"
	chaterrors "context-chatbot/pkg/errors"
)

type echoTool struct {
	name  string
	calls int
	err   error
	last  map[string]any
}

func (e *echoTool) Name() string        { return e.name }
func (e *echoTool) Description() string { return "echo " + e.name }
func (e *echoTool) Schema() ctool.Schema {
	return ctool.Schema{
		Type: "object",
		Properties: map[string]ctool.SchemaProperty{
			"query": {Type: "string", Description: "q"},
			"limit": {Type: "integer", Description: "n"},
		},
		Required: []string{"query"},
	}
}
func (e *echoTool) Execute(ctx context.Context, input map[string]any) (ctool.ToolResult, error) {
	e.calls++
	e.last = input
	if e.err != nil {
		return ctool.ToolResult{}, e.err
	}
	q, _ := input["query"].(string)
	if q == "" {
		q, _ = input["input"].(string)
	}
	return ctool.ToolResult{Kind: ctool.KindSearchResult, Content: "echo:" + q}, nil
}

func TestRuntimeTool_Info(t *testing.T) {
	tools := ToEinoTools([]ctool.Tool{&echoTool{name: "web_search"}, nil})
	require.Len(t, tools, 1)

	info, err := tools[0].Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "web_search", info.Name)
	assert.Equal(t, "echo web_search", info.Desc)
	assert.NotNil(t, info.ParamsOneOf)
}

func TestRuntimeTool_InvokableRun(t *testing.T) {
	et := &echoTool{name: "web_search"}
	rt := &runtimeTool{inner: et}

	out, err := rt.InvokableRun(context.Background(), `{"query":"paris"}`)
	require.NoError(t, err)
	assert.Equal(t, "echo:paris", out)

	out, err = rt.InvokableRun(context.Background(), `not json`)
	require.NoError(t, err)
	assert.Equal(t, "echo:not json", out)

	et.err = errors.New("boom")
	_, err = rt.InvokableRun(context.Background(), `{"query":"x"}`)
	require.Error(t, err)
}

func TestRuntimeTool_StepBudget(t *testing.T) {
	et := &echoTool{name: "web_search"}
	rt := &runtimeTool{inner: et}
	ctx, counter := withStepCounter(context.Background(), 2)

	for i := 0; i < 2; i++ {
		_, err := rt.InvokableRun(ctx, `{"query":"q"}`)
		require.NoError(t, err)
	}
	assert.False(t, counter.exceeded())

	_, err := rt.InvokableRun(ctx, `{"query":"q"}`)
	assert.ErrorIs(t, err, chaterrors.ErrStepLimitExceeded)
	assert.True(t, counter.exceeded())
	assert.Equal(t, 2, et.calls, "over-budget call never reaches the tool")
	assert.Equal(t, 3, counter.steps())
}

func TestDataType(t *testing.T) {
	assert.Equal(t, schema.Integer, dataType("integer"))
	assert.Equal(t, schema.Boolean, dataType("boolean"))
	assert.Equal(t, schema.String, dataType(""))
}
