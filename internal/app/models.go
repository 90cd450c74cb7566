package app

import (
	"context"

	"context-chatbot/internal/model"
	"context-chatbot/internal/model/llm"
	"context-chatbot/internal/runtime/session"
	"context-chatbot/internal/search"
	"context-chatbot/pkg/config"
	chaterrors "context-chatbot/pkg/errors"
	"context-chatbot/pkg/log"
	"context-chatbot/pkg/secrets"
)

// NewGatewayFromConfig 根据 model.llm 创建带限流的模型网关
func NewGatewayFromConfig(ctx context.Context, cfg *config.Config, store secrets.Store, models *model.Registry) (*llm.Gateway, error) {
	if models == nil {
		models = model.NewRegistry(nil)
	}
	mc := cfg.Model.LLM
	apiKey := mc.APIKey
	if mc.Provider == "openai" {
		apiKey = secrets.Resolve(ctx, store, apiKey, "OPENAI_API_KEY")
	}
	client, err := models.LLM(llm.ClientConfig{
		Provider:   mc.Provider,
		Model:      mc.Model,
		BaseURL:    mc.BaseURL,
		APIKey:     apiKey,
		Timeout:    config.ParseDuration(mc.Timeout, 0),
		RetryCount: mc.RetryCount,
	})
	if err != nil {
		return nil, err
	}

	limits := make(map[string]llm.LLMLimitConfig, len(cfg.RateLimits.LLM))
	for provider, l := range cfg.RateLimits.LLM {
		limits[provider] = llm.LLMLimitConfig{
			TokensPerMinute:   l.TokensPerMinute,
			RequestsPerMinute: l.RequestsPerMinute,
			MaxConcurrent:     l.MaxConcurrent,
		}
	}
	limited := llm.NewRateLimitedClient(client, llm.NewLLMRateLimiter(limits, nil))

	return llm.NewGateway(limited, config.ParseDuration(mc.Timeout, 0), llm.GenerateOptions{
		Temperature: mc.Temperature,
		MaxTokens:   mc.MaxTokens,
	}), nil
}

// NewSearchFromConfig 创建搜索链：非模拟模式且有 key 时 Tavily 在前，Wikipedia 兜底
func NewSearchFromConfig(ctx context.Context, cfg *config.Config, store secrets.Store, logger *log.Logger) *search.Chain {
	sc := cfg.Search
	var backends []search.Backend
	if !cfg.SimulatedSearch() {
		key := secrets.Resolve(ctx, store, sc.Tavily.APIKey, "TAVILY_API_KEY")
		if key != "" {
			backends = append(backends, search.NewTavily(search.TavilyOptions{
				APIKey:       key,
				BaseURL:      sc.Tavily.BaseURL,
				MaxResults:   sc.Tavily.MaxResults,
				TopN:         sc.Tavily.TopN,
				SnippetChars: sc.Tavily.SnippetChars,
				SearchDepth:  sc.Tavily.SearchDepth,
				Timeout:      config.ParseDuration(sc.Tavily.Timeout, 0),
			}))
		} else {
			logger.Warn("未配置 TAVILY_API_KEY，仅使用 Wikipedia 搜索")
		}
	}
	backends = append(backends, search.NewWikipedia(search.WikipediaOptions{
		BaseURL:   sc.Wikipedia.BaseURL,
		Results:   sc.Wikipedia.Results,
		Sentences: sc.Wikipedia.Sentences,
		Timeout:   config.ParseDuration(sc.Wikipedia.Timeout, 0),
	}))
	return search.NewChain(logger, backends...)
}

// NewSessionStoreFromConfig 按 session.store 创建会话存储（memory | redis）
func NewSessionStoreFromConfig(ctx context.Context, cfg *config.Config) (session.SessionStore, error) {
	sc := cfg.Session
	ttl := config.ParseDuration(sc.TTL, 0)
	switch sc.Store {
	case "", "memory":
		return session.NewMemoryStore(sc.MaxSessions, ttl), nil
	case "redis":
		return session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			Prefix:   sc.Redis.Prefix,
			TTL:      ttl,
		})
	default:
		return nil, chaterrors.Wrapf(chaterrors.ErrInvalidArg, "unsupported session store %q", sc.Store)
	}
}
