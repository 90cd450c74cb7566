package eino

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"context-chatbot/internal/search"
	ctool "context-chatbot/internal/tool"
	"context-chatbot/internal/tool/builtin"
	chaterrors "context-chatbot/pkg/errors"
)

// routingGenerator 按提示内容区分工具调用与合成调用
type routingGenerator struct {
	mu        sync.Mutex
	presence  string
	split     string
	relevance string
	answer    string
	failAll   bool
	failFinal bool
	prompts   []string
}

func (g *routingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.failAll {
		return "", chaterrors.ErrGatewayUnavailable
	}
	switch {
	case strings.Contains(prompt, "You are a context analyzer"):
		return g.presence, nil
	case strings.Contains(prompt, "You extract two fields"):
		return g.split, nil
	case strings.Contains(prompt, "You check whether a piece of context"):
		return g.relevance, nil
	default:
		if g.failFinal {
			return "", chaterrors.ErrGatewayTimeout
		}
		return g.answer, nil
	}
}

func (g *routingGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[len(g.prompts)-1]
}

type countingSearcher struct {
	text    string
	queries []string
}

func (s *countingSearcher) Search(ctx context.Context, query string) string {
	s.queries = append(s.queries, query)
	return s.text
}

func newWorkflow(t *testing.T, gen *routingGenerator, s *countingSearcher) *ScriptedWorkflow {
	t.Helper()
	tools := builtin.NewContextTools(gen, s, builtin.Defaults{Presence: ctool.KindContextMissing, Relevance: ctool.KindRelevant})
	w, err := NewScriptedWorkflow(context.Background(), gen, tools)
	require.NoError(t, err)
	return w
}

func TestScriptedWorkflow_ContextProvidedSkipsSearch(t *testing.T) {
	gen := &routingGenerator{
		presence:  "context_provided",
		split:     "CONTEXT:\nParis is the capital of France.\n\nQUESTION:\nWhat is its population?",
		relevance: "relevant",
		answer:    "Paris has about 2.1 million residents.",
	}
	s := &countingSearcher{text: "unused"}
	w := newWorkflow(t, gen, s)

	st, err := w.Run(context.Background(), "Paris is the capital of France. What is its population?")
	require.NoError(t, err)
	assert.Empty(t, s.queries, "web search must not run")
	assert.Equal(t, "Paris is the capital of France.", st.Context)
	assert.Equal(t, "What is its population?", st.Question)
	assert.Equal(t, "Paris has about 2.1 million residents.", st.Answer)
	assert.Contains(t, gen.lastPrompt(), "Based on the following context")
	assert.Contains(t, gen.lastPrompt(), "Paris is the capital of France.")
}

func TestScriptedWorkflow_ContextMissingSearchesOnce(t *testing.T) {
	gen := &routingGenerator{
		presence:  "context_missing",
		relevance: "relevant",
		answer:    "About 2.1 million people live in Paris.",
	}
	s := &countingSearcher{text: "From Wikipedia (Paris):\nParis has 2,102,650 residents."}
	w := newWorkflow(t, gen, s)

	st, err := w.Run(context.Background(), "What is the population of Paris?")
	require.NoError(t, err)
	require.Len(t, s.queries, 1)
	assert.Equal(t, "What is the population of Paris?", s.queries[0])
	assert.True(t, st.SearchRan)
	assert.Contains(t, st.Final, "2,102,650")
	assert.Contains(t, gen.lastPrompt(), "2,102,650")
}

func TestScriptedWorkflow_IrrelevantContextDiscarded(t *testing.T) {
	gen := &routingGenerator{presence: "context_missing", relevance: "irrelevant", answer: "General answer here."}
	s := &countingSearcher{text: "Something about cats."}
	w := newWorkflow(t, gen, s)

	st, err := w.Run(context.Background(), "What is the population of Paris?")
	require.NoError(t, err)
	assert.Equal(t, ctool.KindIrrelevant, st.Relevance)
	assert.Empty(t, st.Final)
	assert.Contains(t, gen.lastPrompt(), "based on your knowledge")
}

func TestScriptedWorkflow_NoResultMarkerIsNotContext(t *testing.T) {
	gen := &routingGenerator{presence: "context_missing", relevance: "irrelevant", answer: "General answer here."}
	s := &countingSearcher{text: search.NoResultMarker}
	w := newWorkflow(t, gen, s)

	st, err := w.Run(context.Background(), "What is the population of Paris?")
	require.NoError(t, err)
	assert.Empty(t, st.Final)
	assert.Equal(t, ctool.KindRelevant, st.Relevance, "empty context short-circuits to relevant")
}

func TestScriptedWorkflow_ToolFailuresStillReachSynthesis(t *testing.T) {
	gen := &routingGenerator{failAll: true}
	s := &countingSearcher{text: "From Wikipedia (Paris):\nParis."}
	w := newWorkflow(t, gen, s)

	_, err := w.Run(context.Background(), "Island nations are interesting. Which one is largest?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chaterrors.ErrGatewayUnavailable) || strings.Contains(err.Error(), "synthesis"))
	assert.Len(t, s.queries, 1, "presence fell back to context_missing and search ran")
	assert.Contains(t, gen.lastPrompt(), "Island nations", "synthesis was attempted")
}

func TestScriptedWorkflow_SynthesisFailureFailsWorkflow(t *testing.T) {
	gen := &routingGenerator{presence: "context_missing", relevance: "relevant", failFinal: true}
	w := newWorkflow(t, gen, &countingSearcher{text: "x"})

	_, err := w.Run(context.Background(), "What is Go?")
	require.Error(t, err)
}

func TestSynthesisPrompt(t *testing.T) {
	with := SynthesisPrompt("Go is a language.", "Who made Go?")
	assert.Contains(t, with, "Context:\nGo is a language.")
	assert.Contains(t, with, "Question: Who made Go?")

	without := SynthesisPrompt("  ", "Who made Go?")
	assert.Contains(t, without, "based on your knowledge")
	assert.NotContains(t, without, "Context:")
}
