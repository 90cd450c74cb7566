// Copyright 2026 fanjia1024
// Tests for shared generator helpers

package builtin

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGenerator is a mock implementation of PromptGenerator
type mockGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func TestGenerate_PassesPromptThrough(t *testing.T) {
	gen := &mockGenerator{response: "ok"}
	out, err := generate(context.Background(), "probe", gen, "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, []string{"hello"}, gen.prompts)

	gen.err = errors.New("API error")
	_, err = generate(context.Background(), "probe", gen, "hello")
	assert.EqualError(t, err, "API error")
}

func TestRender(t *testing.T) {
	out := render("C={context} Q={question} C2={context}", map[string]string{"context": "sky", "question": "why blue?"})
	assert.Equal(t, "C=sky Q=why blue? C2=sky", out)
	assert.True(t, strings.Contains(render(presencePrompt, map[string]string{"input": "What is Go?"}), "User Message: What is Go?"))
}

func TestInputString(t *testing.T) {
	in := map[string]any{"input": "  ", "query": "paris", "n": 3}
	assert.Equal(t, "paris", inputString(in, "input", "query"))
	assert.Equal(t, "", inputString(in, "n"))
	assert.Equal(t, "", inputString(in, "missing"))
}
