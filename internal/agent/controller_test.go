package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"context-chatbot/internal/runtime/eino"
	"context-chatbot/internal/runtime/session"
	ctool "context-chatbot/internal/tool"
	"context-chatbot/internal/tool/builtin"
	chaterrors "context-chatbot/pkg/errors"
)

type genFunc func(ctx context.Context, prompt string) (string, error)

func (f genFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func failingGen() genFunc {
	return func(context.Context, string) (string, error) {
		return "", chaterrors.ErrGatewayUnavailable
	}
}

type fakeReasoner struct {
	mu     sync.Mutex
	calls  int
	budget int
	fn     func(ctx context.Context) (*eino.RunResult, error)
}

func (f *fakeReasoner) Attempt(ctx context.Context, text string, tools []ctool.Tool, stepBudget int) (*eino.RunResult, error) {
	f.mu.Lock()
	f.calls++
	f.budget = stepBudget
	f.mu.Unlock()
	return f.fn(ctx)
}

type fakeScripted struct {
	answer string
	err    error
	calls  int
}

func (f *fakeScripted) Run(ctx context.Context, input string) (*eino.ScriptedState, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &eino.ScriptedState{Input: input, Answer: f.answer}, nil
}

func reasonerAnswer(answer string) *fakeReasoner {
	return &fakeReasoner{fn: func(context.Context) (*eino.RunResult, error) {
		return &eino.RunResult{Answer: answer, Steps: 2}, nil
	}}
}

func reasonerErr(err error) *fakeReasoner {
	return &fakeReasoner{fn: func(context.Context) (*eino.RunResult, error) {
		return nil, err
	}}
}

func newTestController(deps Deps, mutate func(*Options)) *Controller {
	opts := DefaultOptions()
	opts.AgentTimeout = time.Second
	opts.ScriptedTimeout = time.Second
	opts.ManualTimeout = time.Second
	opts.DirectTimeout = time.Second
	if mutate != nil {
		mutate(&opts)
	}
	return NewController(deps, opts)
}

func TestController_AgentSuccess(t *testing.T) {
	r := reasonerAnswer("Thought: I know this\nFinal Answer: Paris has roughly 2.1 million residents.")
	scripted := &fakeScripted{answer: "unused"}
	c := newTestController(Deps{Reasoner: r, Scripted: scripted, Generator: failingGen()}, nil)

	resp := c.Handle(context.Background(), "s1", "What is the population of Paris?")
	assert.Equal(t, TierAgent, resp.PathUsed)
	assert.Equal(t, "Paris has roughly 2.1 million residents.", resp.Answer)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Empty(t, resp.Error)
	assert.Equal(t, 0, scripted.calls)
	assert.Equal(t, 5, r.budget)
}

func TestController_StepLimitFallsToScripted(t *testing.T) {
	r := reasonerErr(chaterrors.ErrStepLimitExceeded)
	scripted := &fakeScripted{answer: "Scripted answer about Paris."}
	c := newTestController(Deps{Reasoner: r, Scripted: scripted, Generator: failingGen()}, nil)

	resp := c.Handle(context.Background(), "s1", "What is the population of Paris?")
	assert.Equal(t, TierScripted, resp.PathUsed)
	assert.Equal(t, "Scripted answer about Paris.", resp.Answer)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, 1, scripted.calls)
}

func TestController_QualityGateRejectsAgentAnswer(t *testing.T) {
	cases := []string{"too short", "Exactly twenty chars", "An error occurred while using the tools, sorry."}
	for _, answer := range cases {
		scripted := &fakeScripted{answer: "Scripted answer."}
		c := newTestController(Deps{Reasoner: reasonerAnswer(answer), Scripted: scripted}, nil)
		resp := c.Handle(context.Background(), "s", "question?")
		assert.Equal(t, TierScripted, resp.PathUsed, answer)
	}
}

func TestController_AgentPanicAdvances(t *testing.T) {
	r := &fakeReasoner{fn: func(context.Context) (*eino.RunResult, error) {
		panic("boom")
	}}
	scripted := &fakeScripted{answer: "Recovered by the scripted tier."}
	c := newTestController(Deps{Reasoner: r, Scripted: scripted}, nil)

	resp := c.Handle(context.Background(), "s", "hello there?")
	assert.Equal(t, TierScripted, resp.PathUsed)
	assert.Equal(t, "Recovered by the scripted tier.", resp.Answer)
}

func TestController_AgentTimeoutAdvances(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	r := &fakeReasoner{fn: func(context.Context) (*eino.RunResult, error) {
		<-release
		return &eino.RunResult{Answer: "late answer that ignores the deadline"}, nil
	}}
	scripted := &fakeScripted{answer: "On time."}
	c := newTestController(Deps{Reasoner: r, Scripted: scripted}, func(o *Options) {
		o.AgentTimeout = 50 * time.Millisecond
	})

	start := time.Now()
	resp := c.Handle(context.Background(), "s", "slow question?")
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, TierScripted, resp.PathUsed)
	assert.Equal(t, "On time.", resp.Answer)
}

func TestController_AgentDisabledStartsAtScripted(t *testing.T) {
	r := reasonerAnswer("This answer would pass the quality gate.")
	scripted := &fakeScripted{answer: "Scripted."}
	c := newTestController(Deps{Reasoner: r, Scripted: scripted}, func(o *Options) {
		o.AgentEnabled = false
	})

	assert.False(t, c.AgentReady())
	resp := c.Handle(context.Background(), "s", "question?")
	assert.Equal(t, TierScripted, resp.PathUsed)
	assert.Equal(t, 0, r.calls)
}

func TestController_ManualThenDirect(t *testing.T) {
	var prompts []string
	gen := genFunc(func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		if strings.Contains(prompt, "Based on the following context") {
			return "", chaterrors.ErrGatewayTimeout
		}
		return "Direct reply.", nil
	})
	c := newTestController(Deps{
		Reasoner:  reasonerErr(chaterrors.ErrOrchestratorParse),
		Scripted:  &fakeScripted{err: errors.New("synthesis: gateway unavailable")},
		Generator: gen,
	}, nil)

	text := "Paris is the capital of France. What is its population?"
	resp := c.Handle(context.Background(), "s", text)
	assert.Equal(t, TierDirect, resp.PathUsed)
	assert.Equal(t, "Direct reply.", resp.Answer)
	require.Len(t, prompts, 2)
	assert.Equal(t, text, prompts[1])
}

func TestController_ManualSuccess(t *testing.T) {
	gen := genFunc(func(context.Context, string) (string, error) {
		return "Manual answer.", nil
	})
	c := newTestController(Deps{
		Reasoner:  reasonerErr(chaterrors.ErrStepLimitExceeded),
		Scripted:  &fakeScripted{err: errors.New("compile failed")},
		Generator: gen,
	}, nil)

	resp := c.Handle(context.Background(), "s", "Why is the sky blue?")
	assert.Equal(t, TierManual, resp.PathUsed)
	assert.Equal(t, "Manual answer.", resp.Answer)
}

func TestController_AlwaysFailingGatewayReachesDone(t *testing.T) {
	ctx := context.Background()
	gen := failingGen()
	tools := builtin.NewContextTools(gen, nil, builtin.Defaults{})
	scripted, err := eino.NewScriptedWorkflow(ctx, gen, tools)
	require.NoError(t, err)

	sessions := session.NewManager(session.NewMemoryStore(10, time.Hour))
	c := newTestController(Deps{
		Reasoner:  reasonerErr(chaterrors.ErrGatewayUnavailable),
		Tools:     tools.All(),
		Scripted:  scripted,
		Generator: gen,
		Sessions:  sessions,
	}, nil)

	resp := c.Handle(ctx, "", "What is the population of Paris?")
	assert.Equal(t, DefaultApology, resp.Answer)
	assert.Equal(t, TierDirect, resp.PathUsed)
	assert.NotEmpty(t, resp.Error)
	assert.NotEmpty(t, resp.SessionID)

	hist, err := sessions.History(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, DefaultApology, hist[1].Content)
}

func TestController_NothingConfigured(t *testing.T) {
	c := newTestController(Deps{}, nil)
	resp := c.Handle(context.Background(), "s", "anything?")
	assert.Equal(t, DefaultApology, resp.Answer)
	assert.Equal(t, TierDirect, resp.PathUsed)
	assert.Contains(t, resp.Error, ErrTierDisabled.Error())
}

func TestController_EmptyMessage(t *testing.T) {
	r := reasonerAnswer("never used by an empty message")
	sessions := session.NewManager(nil)
	c := newTestController(Deps{Reasoner: r, Sessions: sessions}, nil)

	resp := c.Handle(context.Background(), "s", "   ")
	assert.Equal(t, EmptyMessageAnswer, resp.Answer)
	assert.Equal(t, TierDirect, resp.PathUsed)
	assert.Equal(t, "empty message", resp.Error)
	assert.Equal(t, 0, r.calls)

	hist, _ := sessions.History(context.Background(), "s")
	assert.Empty(t, hist)
}

func TestController_CancelledRequestSkipsHistory(t *testing.T) {
	sessions := session.NewManager(nil)
	c := newTestController(Deps{
		Reasoner:  reasonerAnswer("This answer would pass the quality gate."),
		Generator: failingGen(),
		Sessions:  sessions,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := c.Handle(ctx, "s", "question?")
	assert.NotEmpty(t, resp.Answer)
	assert.NotEmpty(t, resp.Error)

	hist, _ := sessions.History(context.Background(), "s")
	assert.Empty(t, hist)
}

func TestTierError(t *testing.T) {
	err := &TierError{Tier: TierAgent, Err: chaterrors.ErrStepLimitExceeded}
	assert.ErrorIs(t, err, chaterrors.ErrStepLimitExceeded)
	assert.Equal(t, "tier agent: orchestrator step limit exceeded", err.Error())

	var te *TierError
	assert.True(t, errors.As(error(err), &te))
	assert.Equal(t, TierAgent, te.Tier)
}

func TestStateTransitions(t *testing.T) {
	order := []State{StateTryAgent, StateTryScripted, StateTryManual, StateDirectLLM, StateDone}
	for i := 0; i < len(order)-1; i++ {
		assert.Equal(t, order[i+1], order[i].next())
	}
	assert.Equal(t, StateDone, StateDone.next())
	assert.Equal(t, "TRY_SCRIPTED", StateTryScripted.String())
	assert.Equal(t, TierManual, StateTryManual.Tier())
	assert.Equal(t, Tier(""), StateDone.Tier())
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "timeout", outcome(ErrTierTimeout))
	assert.Equal(t, "panic", outcome(ErrTierPanic))
	assert.Equal(t, "orchestrator", outcome(chaterrors.ErrStepLimitExceeded))
	assert.Equal(t, "gateway", outcome(chaterrors.ErrGatewayTimeout))
	assert.Equal(t, "failure", outcome(errors.New("x")))
}
