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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigPath 默认配置文件路径，可由 CHATBOT_CONFIG 覆盖
const DefaultConfigPath = "configs/api.yaml"

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Model      ModelConfig      `mapstructure:"model"`
	Fallback   FallbackConfig   `mapstructure:"fallback"`
	Search     SearchConfig     `mapstructure:"search"`
	Session    SessionConfig    `mapstructure:"session"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Eino       EinoConfig       `mapstructure:"eino"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Timeout string     `mapstructure:"timeout"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM LLMConfig `mapstructure:"llm"`
}

// LLMConfig 模型网关配置
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // ollama | openai
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Timeout     string  `mapstructure:"timeout"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	RetryCount  int     `mapstructure:"retry_count"`
}

// FallbackConfig 分层降级配置
type FallbackConfig struct {
	Agent    AgentTierConfig    `mapstructure:"agent"`
	Scripted TierConfig         `mapstructure:"scripted"`
	Manual   TierConfig         `mapstructure:"manual"`
	Direct   TierConfig         `mapstructure:"direct"`
	Apology  string             `mapstructure:"apology"`
	Defaults SafeDefaultsConfig `mapstructure:"defaults"`
}

// AgentTierConfig 推理 Agent 层配置
type AgentTierConfig struct {
	Enabled         *bool    `mapstructure:"enabled"` // 未配置时默认 true
	Timeout         string   `mapstructure:"timeout"`
	MaxSteps        int      `mapstructure:"max_steps"`
	MinAnswerLength int      `mapstructure:"min_answer_length"`
	RejectMarkers   []string `mapstructure:"reject_markers"`
}

// TierConfig 单层超时配置
type TierConfig struct {
	Timeout string `mapstructure:"timeout"`
}

// SafeDefaultsConfig 工具失败时的安全默认值
type SafeDefaultsConfig struct {
	Presence  string `mapstructure:"presence"`  // context_missing | context_provided
	Relevance string `mapstructure:"relevance"` // relevant | irrelevant
}

// SearchConfig 联网搜索配置
type SearchConfig struct {
	Simulated *bool           `mapstructure:"simulated"` // true 时仅使用 Wikipedia；未配置时默认 true
	Tavily    TavilyConfig    `mapstructure:"tavily"`
	Wikipedia WikipediaConfig `mapstructure:"wikipedia"`
}

// TavilyConfig Tavily 搜索配置
type TavilyConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	MaxResults   int    `mapstructure:"max_results"`
	TopN         int    `mapstructure:"top_n"`
	SnippetChars int    `mapstructure:"snippet_chars"`
	SearchDepth  string `mapstructure:"search_depth"`
	Timeout      string `mapstructure:"timeout"`
}

// WikipediaConfig Wikipedia 搜索配置
type WikipediaConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Results   int    `mapstructure:"results"`
	Sentences int    `mapstructure:"sentences"`
	Timeout   string `mapstructure:"timeout"`
}

// SessionConfig 会话存储配置
type SessionConfig struct {
	Store       string      `mapstructure:"store"` // memory | redis
	MaxSessions int         `mapstructure:"max_sessions"`
	TTL         string      `mapstructure:"ttl"`
	Redis       RedisConfig `mapstructure:"redis"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
}

// SecretsConfig Secret Store 配置
type SecretsConfig struct {
	Provider string      `mapstructure:"provider"` // env | memory | vault
	Vault    VaultConfig `mapstructure:"vault"`
}

// VaultConfig Vault 连接配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// EinoConfig eino 调试配置
type EinoConfig struct {
	Devops bool `mapstructure:"devops"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	applyLegacyEnv(&config)
	config.ApplyDefaults()
	return &config, nil
}

// LoadAPIConfig 加载 API 配置（CHATBOT_CONFIG 或 configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	path := DefaultConfigPath
	if p := os.Getenv("CHATBOT_CONFIG"); p != "" {
		path = p
	}
	return LoadConfig(path)
}

// Default 返回全部使用默认值的配置
func Default() *Config {
	cfg := &Config{}
	applyLegacyEnv(cfg)
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults 为零值字段填充默认值
func (c *Config) ApplyDefaults() {
	if c.API.Port <= 0 {
		c.API.Port = 5000
	}
	if c.API.Host == "" {
		c.API.Host = "127.0.0.1"
	}

	llm := &c.Model.LLM
	if llm.Provider == "" {
		llm.Provider = "ollama"
	}
	if llm.Model == "" {
		llm.Model = "llama3"
	}
	if llm.BaseURL == "" {
		if llm.Provider == "openai" {
			llm.BaseURL = "http://localhost:11434/v1"
		} else {
			llm.BaseURL = "http://localhost:11434"
		}
	}
	if llm.Timeout == "" {
		llm.Timeout = "60s"
	}
	if llm.MaxTokens <= 0 {
		llm.MaxTokens = 1024
	}

	fb := &c.Fallback
	if fb.Agent.Enabled == nil {
		enabled := true
		fb.Agent.Enabled = &enabled
	}
	if fb.Agent.Timeout == "" {
		fb.Agent.Timeout = "45s"
	}
	if fb.Agent.MaxSteps <= 0 {
		fb.Agent.MaxSteps = 5
	}
	if fb.Agent.MinAnswerLength <= 0 {
		fb.Agent.MinAnswerLength = 20
	}
	if fb.Agent.RejectMarkers == nil {
		fb.Agent.RejectMarkers = []string{"error"}
	}
	if fb.Scripted.Timeout == "" {
		fb.Scripted.Timeout = "40s"
	}
	if fb.Manual.Timeout == "" {
		fb.Manual.Timeout = "25s"
	}
	if fb.Direct.Timeout == "" {
		fb.Direct.Timeout = "20s"
	}
	if fb.Apology == "" {
		fb.Apology = "I apologize, but I'm having trouble processing your request. Please try rephrasing your question."
	}
	if fb.Defaults.Presence == "" {
		fb.Defaults.Presence = "context_missing"
	}
	if fb.Defaults.Relevance == "" {
		fb.Defaults.Relevance = "relevant"
	}

	s := &c.Search
	if s.Simulated == nil {
		simulated := true
		s.Simulated = &simulated
	}
	if s.Tavily.BaseURL == "" {
		s.Tavily.BaseURL = "https://api.tavily.com"
	}
	if s.Tavily.MaxResults <= 0 {
		s.Tavily.MaxResults = 3
	}
	if s.Tavily.TopN <= 0 {
		s.Tavily.TopN = 2
	}
	if s.Tavily.SnippetChars <= 0 {
		s.Tavily.SnippetChars = 500
	}
	if s.Tavily.SearchDepth == "" {
		s.Tavily.SearchDepth = "basic"
	}
	if s.Tavily.Timeout == "" {
		s.Tavily.Timeout = "10s"
	}
	if s.Wikipedia.BaseURL == "" {
		s.Wikipedia.BaseURL = "https://en.wikipedia.org"
	}
	if s.Wikipedia.Results <= 0 {
		s.Wikipedia.Results = 3
	}
	if s.Wikipedia.Sentences <= 0 {
		s.Wikipedia.Sentences = 4
	}
	if s.Wikipedia.Timeout == "" {
		s.Wikipedia.Timeout = "10s"
	}

	if c.Session.Store == "" {
		c.Session.Store = "memory"
	}
	if c.Session.MaxSessions <= 0 {
		c.Session.MaxSessions = 1000
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "1h"
	}
	if c.Session.Redis.Prefix == "" {
		c.Session.Redis.Prefix = "chatbot:session:"
	}

	if c.Secrets.Provider == "" {
		c.Secrets.Provider = "env"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Monitoring.Tracing.ServiceName == "" {
		c.Monitoring.Tracing.ServiceName = "context-chatbot"
	}
}

// AgentEnabled 推理 Agent 层是否启用
func (c *Config) AgentEnabled() bool {
	return c.Fallback.Agent.Enabled == nil || *c.Fallback.Agent.Enabled
}

// SimulatedSearch 是否仅使用离线友好的 Wikipedia 搜索
func (c *Config) SimulatedSearch() bool {
	return c.Search.Simulated == nil || *c.Search.Simulated
}

// replaceEnvVars 替换 "${VAR}" 形式的密钥字段
func replaceEnvVars(config *Config) {
	config.Model.LLM.APIKey = expandEnv(config.Model.LLM.APIKey)
	config.Search.Tavily.APIKey = expandEnv(config.Search.Tavily.APIKey)
	config.Session.Redis.Password = expandEnv(config.Session.Redis.Password)
	config.Secrets.Vault.Token = expandEnv(config.Secrets.Vault.Token)
}

func expandEnv(v string) string {
	if !strings.HasPrefix(v, "$") {
		return v
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(v, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	return os.Getenv(envVar)
}

// applyLegacyEnv 兼容旧部署使用的环境变量
func applyLegacyEnv(config *Config) {
	if m := os.Getenv("OLLAMA_MODEL"); m != "" {
		config.Model.LLM.Model = m
	}
	if h := os.Getenv("OLLAMA_HOST"); h != "" && config.Model.LLM.BaseURL == "" {
		config.Model.LLM.BaseURL = h
	}
	if k := os.Getenv("TAVILY_API_KEY"); k != "" && config.Search.Tavily.APIKey == "" {
		config.Search.Tavily.APIKey = k
	}
	if s := os.Getenv("USE_SIMULATED_SEARCH"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			config.Search.Simulated = &b
		}
	}
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
