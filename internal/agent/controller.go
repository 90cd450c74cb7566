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

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"context-chatbot/internal/runtime/eino"
	"context-chatbot/internal/runtime/session"
	ctool "context-chatbot/internal/tool"
	"context-chatbot/internal/tool/builtin"
	chaterrors "context-chatbot/pkg/errors"
	"context-chatbot/pkg/log"
	"context-chatbot/pkg/metrics"
	"context-chatbot/pkg/tracing"
)

// ScriptedRunner 脚本化工作流（由 eino.ScriptedWorkflow 实现）
type ScriptedRunner interface {
	Run(ctx context.Context, input string) (*eino.ScriptedState, error)
}

// Controller 降级控制器：每条消息依次尝试 agent -> scripted -> manual -> direct，总能产出回复
type Controller struct {
	opts     Options
	reasoner eino.Reasoner
	tools    []ctool.Tool
	scripted ScriptedRunner
	manual   *ManualWorkflow
	gen      builtin.PromptGenerator
	sessions session.SessionManager
	logger   *log.Logger
}

// Deps 控制器依赖；Reasoner、Scripted、Sessions 可为 nil
type Deps struct {
	Reasoner  eino.Reasoner
	Tools     []ctool.Tool
	Scripted  ScriptedRunner
	Generator builtin.PromptGenerator
	Sessions  session.SessionManager
	Logger    *log.Logger
}

// NewController 创建控制器
func NewController(deps Deps, opts Options) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	def := DefaultOptions()
	if opts.Apology == "" {
		opts.Apology = def.Apology
	}
	for _, d := range []struct{ v *time.Duration; def time.Duration }{
		{&opts.AgentTimeout, def.AgentTimeout},
		{&opts.ScriptedTimeout, def.ScriptedTimeout},
		{&opts.ManualTimeout, def.ManualTimeout},
		{&opts.DirectTimeout, def.DirectTimeout},
	} {
		if *d.v <= 0 {
			*d.v = d.def
		}
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = def.MaxSteps
	}
	return &Controller{
		opts:     opts,
		reasoner: deps.Reasoner,
		tools:    deps.Tools,
		scripted: deps.Scripted,
		manual:   NewManualWorkflow(deps.Generator),
		gen:      deps.Generator,
		sessions: deps.Sessions,
		logger:   logger,
	}
}

// AgentReady Agent 层是否可用
func (c *Controller) AgentReady() bool {
	return c.opts.AgentEnabled && c.reasoner != nil
}

// Handle 处理一条消息并返回回复信封；不会返回空答案
func (c *Controller) Handle(ctx context.Context, sessionID, text string) *Response {
	start := time.Now()
	if sessionID == "" {
		sessionID = session.NewID()
	}
	logger := log.FromContext(ctx, c.logger).With("session_id", sessionID)

	resp := c.run(ctx, logger, sessionID, strings.TrimSpace(text))

	metrics.ChatRequestsTotal.WithLabelValues(string(resp.PathUsed)).Inc()
	metrics.ChatDuration.WithLabelValues(string(resp.PathUsed)).Observe(time.Since(start).Seconds())
	return resp
}

func (c *Controller) run(ctx context.Context, logger *log.Logger, sessionID, text string) *Response {
	if text == "" {
		return &Response{Answer: EmptyMessageAnswer, PathUsed: TierDirect, SessionID: sessionID, Error: "empty message"}
	}

	msg := session.NewChatMessage(sessionID, text)
	resp := &Response{SessionID: sessionID}
	var lastErr error

	for state := StateTryAgent; state != StateDone; {
		tier := state.Tier()
		if !c.enabled(state) {
			logger.Debug("跳过未启用的层", "tier", tier)
			state = state.next()
			continue
		}
		if err := ctx.Err(); err != nil {
			lastErr = &TierError{Tier: tier, Err: err}
			break
		}

		resp.PathUsed = tier
		tierStart := time.Now()
		answer, err := c.attempt(ctx, state, sessionID, msg.Text)
		elapsed := time.Since(tierStart)
		metrics.TierDuration.WithLabelValues(string(tier)).Observe(elapsed.Seconds())
		metrics.TierAttemptsTotal.WithLabelValues(string(tier), outcome(err)).Inc()

		if err == nil {
			logger.Info("层处理成功", "tier", tier, "elapsed_ms", elapsed.Milliseconds())
			resp.Answer = answer
			state = StateDone
			break
		}
		lastErr = &TierError{Tier: tier, Err: err}
		logger.Warn("层处理失败，降级", "tier", tier, "state", state.String(), "elapsed_ms", elapsed.Milliseconds(), "error", err)
		state = state.next()
	}

	if resp.Answer == "" {
		resp.Answer = c.opts.Apology
		resp.PathUsed = TierDirect
		if lastErr == nil {
			lastErr = &TierError{Tier: TierDirect, Err: ErrTierDisabled}
		}
		resp.Error = lastErr.Error()
	}

	if c.sessions != nil {
		if err := c.sessions.Append(ctx, sessionID, msg.Text, resp.Answer); err != nil {
			logger.Warn("写入会话历史失败", "error", err)
		}
	}
	return resp
}

func (c *Controller) enabled(state State) bool {
	switch state {
	case StateTryAgent:
		return c.AgentReady()
	case StateTryScripted:
		return c.scripted != nil
	default:
		return c.gen != nil
	}
}

type tierOutcome struct {
	answer string
	err    error
}

// attempt 在独立 goroutine 中以该层超时执行一次尝试，并恢复 panic
func (c *Controller) attempt(ctx context.Context, state State, sessionID, text string) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, c.opts.timeout(state))
	defer cancel()
	tctx, span := tracing.StartTierSpan(tctx, string(state.Tier()), sessionID)

	ch := make(chan tierOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- tierOutcome{err: fmt.Errorf("%w: %v", ErrTierPanic, r)}
			}
		}()
		answer, err := c.runTier(tctx, state, text)
		ch <- tierOutcome{answer: answer, err: err}
	}()

	var out tierOutcome
	select {
	case out = <-ch:
	case <-tctx.Done():
		out.err = fmt.Errorf("%w: %v", ErrTierTimeout, tctx.Err())
	}
	if out.err == nil && strings.TrimSpace(out.answer) == "" {
		out.err = chaterrors.ErrInsufficientAnswer
	}
	tracing.EndSpan(span, out.err)
	return out.answer, out.err
}

func (c *Controller) runTier(ctx context.Context, state State, text string) (string, error) {
	switch state {
	case StateTryAgent:
		return c.runAgent(ctx, text)
	case StateTryScripted:
		st, err := c.scripted.Run(ctx, text)
		if err != nil {
			return "", err
		}
		return st.Answer, nil
	case StateTryManual:
		return c.manual.Run(ctx, text)
	case StateDirectLLM:
		answer, err := c.gen.Generate(ctx, text)
		return strings.TrimSpace(answer), err
	default:
		return "", fmt.Errorf("no tier for state %s", state)
	}
}

func (c *Controller) runAgent(ctx context.Context, text string) (string, error) {
	res, err := c.reasoner.Attempt(ctx, text, c.tools, c.opts.MaxSteps)
	if err != nil {
		return "", err
	}
	answer := CleanTrace(res.Answer)
	if !AcceptAnswer(answer, c.opts.MinAnswerLength, c.opts.RejectMarkers) {
		return "", fmt.Errorf("%w: agent answer rejected by quality gate", chaterrors.ErrInsufficientAnswer)
	}
	return answer, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTierTimeout):
		return "timeout"
	case errors.Is(err, ErrTierPanic):
		return "panic"
	case chaterrors.IsOrchestratorError(err):
		return "orchestrator"
	case chaterrors.IsGatewayError(err):
		return "gateway"
	default:
		return "failure"
	}
}
