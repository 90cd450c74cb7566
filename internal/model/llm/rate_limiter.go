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

package llm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// LLMLimitConfig LLM Provider 限流配置
type LLMLimitConfig struct {
	TokensPerMinute   int     // 每分钟 token 配额，0 表示不限
	RequestsPerMinute float64 // 每分钟请求数，0 表示不限
	MaxConcurrent     int     // 最大并发请求数，0 表示不限
}

// LLMRateLimiter 按 provider 维度限流：请求速率 + token 预算 + 并发
type LLMRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*llmLimiter
	defaults LLMLimitConfig
}

type llmLimiter struct {
	requests  *rate.Limiter
	tokens    *rate.Limiter
	semaphore chan struct{}
}

// NewLLMRateLimiter 创建限流器；未配置的 provider 使用 defaults
func NewLLMRateLimiter(configs map[string]LLMLimitConfig, defaults *LLMLimitConfig) *LLMRateLimiter {
	l := &LLMRateLimiter{limiters: make(map[string]*llmLimiter)}
	if defaults != nil {
		l.defaults = *defaults
	} else {
		l.defaults = LLMLimitConfig{RequestsPerMinute: 120, MaxConcurrent: 4}
	}
	for provider, cfg := range configs {
		l.limiters[provider] = newLLMLimiter(cfg)
	}
	return l
}

func newLLMLimiter(cfg LLMLimitConfig) *llmLimiter {
	limiter := &llmLimiter{}
	if cfg.RequestsPerMinute > 0 {
		burst := int(cfg.RequestsPerMinute / 60 * 2)
		if burst < 1 {
			burst = 1
		}
		limiter.requests = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), burst)
	}
	if cfg.TokensPerMinute > 0 {
		// burst 取整分钟配额，保证单次估算不超过 burst 时 WaitN 不会直接报错
		limiter.tokens = rate.NewLimiter(rate.Limit(float64(cfg.TokensPerMinute)/60), cfg.TokensPerMinute)
	}
	if cfg.MaxConcurrent > 0 {
		limiter.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	return limiter
}

func (l *LLMRateLimiter) get(provider string) *llmLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[provider]
	if !ok {
		limiter = newLLMLimiter(l.defaults)
		l.limiters[provider] = limiter
	}
	return limiter
}

// Wait 阻塞直到获得执行许可；成功后必须调用 Release
func (l *LLMRateLimiter) Wait(ctx context.Context, provider string, estimatedTokens int) error {
	limiter := l.get(provider)

	if limiter.requests != nil {
		if err := limiter.requests.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if limiter.tokens != nil && estimatedTokens > 0 {
		n := estimatedTokens
		if n > limiter.tokens.Burst() {
			n = limiter.tokens.Burst()
		}
		if err := limiter.tokens.WaitN(ctx, n); err != nil {
			return fmt.Errorf("token budget wait failed: %w", err)
		}
	}
	if limiter.semaphore != nil {
		select {
		case limiter.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 释放并发 slot
func (l *LLMRateLimiter) Release(provider string) {
	limiter := l.get(provider)
	if limiter.semaphore == nil {
		return
	}
	select {
	case <-limiter.semaphore:
	default:
	}
}

// InFlight 当前占用的并发 slot 数
func (l *LLMRateLimiter) InFlight(provider string) int {
	limiter := l.get(provider)
	return len(limiter.semaphore)
}
