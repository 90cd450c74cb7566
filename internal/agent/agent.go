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
	"errors"
	"fmt"
	"time"

	"context-chatbot/pkg/config"
)

// Tier 产生回复的路径
type Tier string

const (
	TierAgent    Tier = "agent"
	TierScripted Tier = "scripted_workflow"
	TierManual   Tier = "manual_workflow"
	TierDirect   Tier = "direct_llm"
)

// State 降级状态机的状态
type State int

const (
	StateTryAgent State = iota
	StateTryScripted
	StateTryManual
	StateDirectLLM
	StateDone
)

func (s State) String() string {
	switch s {
	case StateTryAgent:
		return "TRY_AGENT"
	case StateTryScripted:
		return "TRY_SCRIPTED"
	case StateTryManual:
		return "TRY_MANUAL"
	case StateDirectLLM:
		return "DIRECT_LLM"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Tier 返回该状态尝试的路径；DONE 没有对应路径
func (s State) Tier() Tier {
	switch s {
	case StateTryAgent:
		return TierAgent
	case StateTryScripted:
		return TierScripted
	case StateTryManual:
		return TierManual
	case StateDirectLLM:
		return TierDirect
	default:
		return ""
	}
}

// next 失败后的下一个状态
func (s State) next() State {
	if s >= StateDirectLLM {
		return StateDone
	}
	return s + 1
}

// Response 对外返回的回复信封；Answer 永不为空
type Response struct {
	Answer    string `json:"answer"`
	PathUsed  Tier   `json:"path_used"`
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}

var (
	// ErrTierTimeout 单层尝试超出其时限
	ErrTierTimeout = errors.New("tier timeout")
	// ErrTierPanic 单层尝试发生 panic
	ErrTierPanic = errors.New("tier panic")
	// ErrTierDisabled 该层未启用或未配置
	ErrTierDisabled = errors.New("tier disabled")
)

// TierError 记录失败发生在哪一层
type TierError struct {
	Tier Tier
	Err  error
}

func (e *TierError) Error() string {
	return fmt.Sprintf("tier %s: %v", e.Tier, e.Err)
}

func (e *TierError) Unwrap() error {
	return e.Err
}

const (
	// DefaultApology 全部层失败时的固定回复
	DefaultApology = "I apologize, but I'm having trouble processing your request. Please try rephrasing your question."
	// EmptyMessageAnswer 空消息的固定回复
	EmptyMessageAnswer = "Please enter a message so I can help you."
)

// Options 控制器参数
type Options struct {
	AgentEnabled    bool
	AgentTimeout    time.Duration
	ScriptedTimeout time.Duration
	ManualTimeout   time.Duration
	DirectTimeout   time.Duration
	MaxSteps        int
	MinAnswerLength int
	RejectMarkers   []string
	Apology         string
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		AgentEnabled:    true,
		AgentTimeout:    60 * time.Second,
		ScriptedTimeout: 45 * time.Second,
		ManualTimeout:   30 * time.Second,
		DirectTimeout:   30 * time.Second,
		MaxSteps:        5,
		MinAnswerLength: 20,
		RejectMarkers:   []string{"error"},
		Apology:         DefaultApology,
	}
}

// OptionsFromConfig 从 fallback 配置构造参数
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	if cfg == nil {
		return opts
	}
	fb := cfg.Fallback
	opts.AgentEnabled = cfg.AgentEnabled()
	opts.AgentTimeout = config.ParseDuration(fb.Agent.Timeout, opts.AgentTimeout)
	opts.ScriptedTimeout = config.ParseDuration(fb.Scripted.Timeout, opts.ScriptedTimeout)
	opts.ManualTimeout = config.ParseDuration(fb.Manual.Timeout, opts.ManualTimeout)
	opts.DirectTimeout = config.ParseDuration(fb.Direct.Timeout, opts.DirectTimeout)
	if fb.Agent.MaxSteps > 0 {
		opts.MaxSteps = fb.Agent.MaxSteps
	}
	if fb.Agent.MinAnswerLength > 0 {
		opts.MinAnswerLength = fb.Agent.MinAnswerLength
	}
	if len(fb.Agent.RejectMarkers) > 0 {
		opts.RejectMarkers = fb.Agent.RejectMarkers
	}
	if fb.Apology != "" {
		opts.Apology = fb.Apology
	}
	return opts
}

func (o Options) timeout(s State) time.Duration {
	switch s {
	case StateTryAgent:
		return o.AgentTimeout
	case StateTryScripted:
		return o.ScriptedTimeout
	case StateTryManual:
		return o.ManualTimeout
	default:
		return o.DirectTimeout
	}
}
