package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chaterrors "context-chatbot/pkg/errors"
)

type fakeClient struct {
	reply string
	err   error
	delay time.Duration
	calls int32
}

func (f *fakeClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	return f.GenerateWithContext(ctx, messagesText(messages), options)
}

func (f *fakeClient) Model() string    { return "fake-model" }
func (f *fakeClient) Provider() string { return "fake" }

func TestNewClient_Providers(t *testing.T) {
	c, err := NewClient(ClientConfig{Provider: "ollama", Model: "llama3", BaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", c.Provider())
	assert.Equal(t, "llama3", c.Model())

	c, err = NewClient(ClientConfig{Provider: "openai", Model: "qwen2", BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Provider())
	assert.Equal(t, "qwen2", c.Model())

	_, err = NewClient(ClientConfig{Provider: "claude"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported llm provider")
}

func TestOpenAIClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Paris"}}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(ClientConfig{Model: "llama3", BaseURL: srv.URL + "/v1/", APIKey: "sk-test"})
	require.NoError(t, err)
	out, err := c.GenerateWithContext(context.Background(), "capital of France?", GenerateOptions{MaxTokens: 16})
	require.NoError(t, err)
	assert.Equal(t, "Paris", out)
}

func TestOpenAIClient_ErrorsAreClassified(t *testing.T) {
	t.Run("bad status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()
		c, _ := NewOpenAIClient(ClientConfig{BaseURL: srv.URL})
		_, err := c.GenerateWithContext(context.Background(), "hi", GenerateOptions{})
		assert.ErrorIs(t, err, chaterrors.ErrGatewayUnavailable)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()
		c, _ := NewOpenAIClient(ClientConfig{BaseURL: srv.URL})
		_, err := c.GenerateWithContext(context.Background(), "hi", GenerateOptions{})
		assert.ErrorIs(t, err, chaterrors.ErrGatewayUnavailable)
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()
		c, _ := NewOpenAIClient(ClientConfig{BaseURL: srv.URL})
		_, err := c.GenerateWithContext(context.Background(), "hi", GenerateOptions{})
		assert.ErrorIs(t, err, chaterrors.ErrGatewayUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		defer srv.Close()
		c, _ := NewOpenAIClient(ClientConfig{BaseURL: srv.URL})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := c.GenerateWithContext(ctx, "hi", GenerateOptions{})
		assert.ErrorIs(t, err, chaterrors.ErrGatewayTimeout)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()
		c, _ := NewOpenAIClient(ClientConfig{BaseURL: url})
		_, err := c.GenerateWithContext(context.Background(), "hi", GenerateOptions{})
		assert.ErrorIs(t, err, chaterrors.ErrGatewayUnavailable)
	})
}

func TestOllamaClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, false, body["stream"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"About 2.1 million."},"done":true}` + "\n"))
	}))
	defer srv.Close()

	c, err := NewOllamaClient("llama3", srv.URL, time.Second)
	require.NoError(t, err)
	out, err := c.GenerateWithContext(context.Background(), "population of Paris?", GenerateOptions{Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "About 2.1 million.", out)
}

func TestOllamaClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	c, err := NewOllamaClient("llama3", srv.URL, time.Second)
	require.NoError(t, err)
	_, err = c.GenerateWithContext(context.Background(), "hi", GenerateOptions{})
	assert.ErrorIs(t, err, chaterrors.ErrGatewayUnavailable)
}

func TestGateway_Generate(t *testing.T) {
	g := NewGateway(&fakeClient{reply: "ok answer"}, time.Second, GenerateOptions{})
	out, err := g.Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ok answer", out)
	assert.Equal(t, "fake-model", g.Model())
}

func TestGateway_EmptyOutputIsUnavailable(t *testing.T) {
	g := NewGateway(&fakeClient{reply: "   "}, time.Second, GenerateOptions{})
	_, err := g.Generate(context.Background(), "q")
	assert.ErrorIs(t, err, chaterrors.ErrGatewayUnavailable)
}

func TestGateway_ErrorClassification(t *testing.T) {
	g := NewGateway(&fakeClient{err: errors.New("connection refused")}, time.Second, GenerateOptions{})
	_, err := g.Generate(context.Background(), "q")
	assert.ErrorIs(t, err, chaterrors.ErrGatewayUnavailable)
	assert.True(t, chaterrors.IsGatewayError(err))

	slow := NewGateway(&fakeClient{reply: "late", delay: time.Second}, 20*time.Millisecond, GenerateOptions{})
	_, err = slow.Generate(context.Background(), "q")
	assert.ErrorIs(t, err, chaterrors.ErrGatewayTimeout)
}

func TestGateway_NilClient(t *testing.T) {
	var g *Gateway
	_, err := g.Generate(context.Background(), "q")
	assert.ErrorIs(t, err, chaterrors.ErrGatewayUnavailable)
}

func TestRateLimitedClient_ConcurrencySlotReleased(t *testing.T) {
	limiter := NewLLMRateLimiter(map[string]LLMLimitConfig{
		"fake": {RequestsPerMinute: 6000, MaxConcurrent: 1},
	}, nil)
	inner := &fakeClient{reply: "done"}
	c := NewRateLimitedClient(inner, limiter)

	for i := 0; i < 3; i++ {
		out, err := c.GenerateWithContext(context.Background(), "hello", GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "done", out)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&inner.calls))
	assert.Equal(t, 0, limiter.InFlight("fake"))
	assert.Equal(t, "fake", c.Provider())
	assert.Equal(t, "fake-model", c.Model())
}

func TestRateLimitedClient_WaitHonorsContext(t *testing.T) {
	limiter := NewLLMRateLimiter(map[string]LLMLimitConfig{"fake": {MaxConcurrent: 1}}, nil)
	require.NoError(t, limiter.Wait(context.Background(), "fake", 1))
	defer limiter.Release("fake")

	c := NewRateLimitedClient(&fakeClient{reply: "x"}, limiter)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.ChatWithContext(ctx, []Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
	require.Error(t, err)
	assert.True(t, chaterrors.IsGatewayError(err))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, estimateTokens("", 0))
	assert.Equal(t, 2, estimateTokens("12345678", 0))
	assert.Equal(t, 102, estimateTokens("12345678", 100))
}
