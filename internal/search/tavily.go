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

package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	chaterrors "context-chatbot/pkg/errors"
)

// TavilyOptions Tavily 检索参数
type TavilyOptions struct {
	APIKey       string
	BaseURL      string
	MaxResults   int
	TopN         int
	SnippetChars int
	SearchDepth  string
	Timeout      time.Duration
}

// Tavily Tavily 搜索 API 客户端
type Tavily struct {
	opts   TavilyOptions
	client *resty.Client
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// NewTavily 创建 Tavily 客户端
func NewTavily(opts TavilyOptions) *Tavily {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.tavily.com"
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 3
	}
	if opts.TopN <= 0 {
		opts.TopN = 2
	}
	if opts.SnippetChars <= 0 {
		opts.SnippetChars = 500
	}
	if opts.SearchDepth == "" {
		opts.SearchDepth = "basic"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout)
	return &Tavily{opts: opts, client: client}
}

// Name 实现 Backend
func (t *Tavily) Name() string { return "tavily" }

// Search 实现 Backend：取前 TopN 条结果的 content，各截断到 SnippetChars，空行分隔
func (t *Tavily) Search(ctx context.Context, query string) (string, error) {
	if t.opts.APIKey == "" {
		return "", fmt.Errorf("%w: tavily api key not configured", chaterrors.ErrSearchUnavailable)
	}

	var out tavilyResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+t.opts.APIKey).
		SetBody(tavilyRequest{Query: query, MaxResults: t.opts.MaxResults, SearchDepth: t.opts.SearchDepth}).
		SetResult(&out).
		Post("/search")
	if err != nil {
		return "", fmt.Errorf("%w: tavily: %v", chaterrors.ErrSearchUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: tavily status %d", chaterrors.ErrSearchUnavailable, resp.StatusCode())
	}

	pieces := make([]string, 0, t.opts.TopN)
	for i, r := range out.Results {
		if i >= t.opts.TopN {
			break
		}
		if r.Content == "" {
			continue
		}
		pieces = append(pieces, truncateRunes(r.Content, t.opts.SnippetChars))
	}
	if len(pieces) == 0 {
		return "", fmt.Errorf("%w: tavily returned no content", chaterrors.ErrSearchUnavailable)
	}
	return strings.Join(pieces, "\n\n"), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
