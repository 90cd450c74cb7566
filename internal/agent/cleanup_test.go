package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTrace(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips trace lines and final answer prefix",
			in:   "Thought: search first\nAction: web_search\nAction Input: Paris\nObservation: 2.1 million\nFinal Answer: Paris has about 2.1 million people.",
			want: "Paris has about 2.1 million people.",
		},
		{
			name: "plain answer untouched",
			in:   "  The capital of France is Paris.  ",
			want: "The capital of France is Paris.",
		},
		{
			name: "short cleanup keeps original",
			in:   "Thought: done\nFinal Answer: Paris",
			want: "Thought: done\nFinal Answer: Paris",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTrace(tt.in))
		})
	}
}

func TestAcceptAnswer(t *testing.T) {
	markers := []string{"error"}
	assert.True(t, AcceptAnswer("Paris has about 2.1 million people.", 20, markers))
	assert.False(t, AcceptAnswer("Paris.", 20, markers))
	assert.False(t, AcceptAnswer("An ERROR happened while answering.", 20, markers))
	assert.False(t, AcceptAnswer("", 0, markers))
	assert.True(t, AcceptAnswer("An error is allowed here.", 5, nil))

	// 恰好 minLen 个字符不通过，多一个字符通过
	assert.False(t, AcceptAnswer("Exactly twenty chars", 20, markers))
	assert.False(t, AcceptAnswer("  Exactly twenty chars \n", 20, markers))
	assert.True(t, AcceptAnswer("Exactly twenty chars!", 20, markers))
}
