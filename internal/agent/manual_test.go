package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chaterrors "context-chatbot/pkg/errors"
)

func TestFrameInput(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		context  string
		question string
		has      bool
	}{
		{
			name:     "sentence before question",
			in:       "Paris is the capital of France. What is its population?",
			context:  "Paris is the capital of France.",
			question: "What is its population?",
			has:      true,
		},
		{
			name:     "plain question",
			in:       "What is the population of Paris?",
			question: "What is the population of Paris?",
		},
		{
			name:     "short prefix is not context",
			in:       "Hi. Why?",
			question: "Hi. Why?",
		},
		{
			name:     "keyword cue with clause",
			in:       "Given that water boils at 100C, how hot is boiling water in Kelvin",
			context:  "Given that water boils at 100C",
			question: "how hot is boiling water in Kelvin",
			has:      true,
		},
		{
			name:     "keyword cue after a lead-in",
			in:       "Tell me, according to the 2020 census; how many people live in Paris",
			context:  "according to the 2020 census",
			question: "Tell me, how many people live in Paris",
			has:      true,
		},
		{
			name:     "keyword cue without separator",
			in:       "Given that water boils at 100C how hot is boiling water in Kelvin",
			question: "Given that water boils at 100C how hot is boiling water in Kelvin",
			has:      true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FrameInput(tt.in)
			assert.Equal(t, tt.has, f.HasContext)
			assert.Equal(t, tt.context, f.Context)
			assert.Equal(t, tt.question, f.Question)
		})
	}
}

func TestManualWorkflow_Run(t *testing.T) {
	var got string
	m := NewManualWorkflow(genFunc(func(_ context.Context, prompt string) (string, error) {
		got = prompt
		return " About 2.1 million. ", nil
	}))

	answer, err := m.Run(context.Background(), "Paris is the capital of France. What is its population?")
	require.NoError(t, err)
	assert.Equal(t, "About 2.1 million.", answer)
	assert.Contains(t, got, "Paris is the capital of France.")
	assert.Contains(t, got, "Question: What is its population?")
}

func TestManualWorkflow_CueInputAppearsOnce(t *testing.T) {
	inputs := []string{
		"Given that water boils at 100C how hot is boiling water in Kelvin",
		"Given that water boils at 100C, how hot is boiling water in Kelvin",
	}
	for _, in := range inputs {
		var got string
		m := NewManualWorkflow(genFunc(func(_ context.Context, prompt string) (string, error) {
			got = prompt
			return "373.15 K", nil
		}))
		_, err := m.Run(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(got, "water boils at 100C"), got)
		assert.Equal(t, 1, strings.Count(got, "how hot is boiling water in Kelvin"), got)
	}
}

func TestManualWorkflow_Failures(t *testing.T) {
	_, err := NewManualWorkflow(nil).Run(context.Background(), "q?")
	assert.ErrorIs(t, err, ErrTierDisabled)

	_, err = NewManualWorkflow(failingGen()).Run(context.Background(), "q?")
	assert.ErrorIs(t, err, chaterrors.ErrGatewayUnavailable)

	empty := genFunc(func(context.Context, string) (string, error) { return "  ", nil })
	_, err = NewManualWorkflow(empty).Run(context.Background(), "q?")
	assert.Error(t, err)
}
