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
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	chaterrors "context-chatbot/pkg/errors"
)

// WikipediaOptions Wikipedia 检索参数
type WikipediaOptions struct {
	BaseURL   string
	Results   int
	Sentences int
	Timeout   time.Duration
}

// Wikipedia 基于 MediaWiki API 的检索：先搜标题，再取首个可用页面的导言摘要
type Wikipedia struct {
	opts   WikipediaOptions
	client *resty.Client
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string  `json:"title"`
			Extract string  `json:"extract"`
			Missing *string `json:"missing,omitempty"`
		} `json:"pages"`
	} `json:"query"`
}

// NewWikipedia 创建 Wikipedia 客户端
func NewWikipedia(opts WikipediaOptions) *Wikipedia {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://en.wikipedia.org"
	}
	if opts.Results <= 0 {
		opts.Results = 3
	}
	if opts.Sentences <= 0 {
		opts.Sentences = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", "context-chatbot/1.0")
	return &Wikipedia{opts: opts, client: client}
}

// Name 实现 Backend
func (w *Wikipedia) Name() string { return "wikipedia" }

// Search 实现 Backend，结果格式为 "From Wikipedia (<title>):\n<extract>"
func (w *Wikipedia) Search(ctx context.Context, query string) (string, error) {
	titles, err := w.searchTitles(ctx, query)
	if err != nil {
		return "", err
	}
	if len(titles) == 0 {
		return "", fmt.Errorf("%w: no wikipedia articles for %q", chaterrors.ErrSearchUnavailable, query)
	}
	// 消歧义页或缺失页的摘要为空，依次尝试后续标题
	for _, title := range titles {
		extract, err := w.extract(ctx, title)
		if err != nil {
			return "", err
		}
		if extract != "" {
			return fmt.Sprintf("From Wikipedia (%s):\n%s", title, extract), nil
		}
	}
	return "", fmt.Errorf("%w: no usable wikipedia extract for %q", chaterrors.ErrSearchUnavailable, query)
}

func (w *Wikipedia) searchTitles(ctx context.Context, query string) ([]string, error) {
	var out wikiSearchResponse
	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"action":   "query",
			"list":     "search",
			"srsearch": query,
			"srlimit":  strconv.Itoa(w.opts.Results),
			"format":   "json",
		}).
		SetResult(&out).
		Get("/w/api.php")
	if err != nil {
		return nil, fmt.Errorf("%w: wikipedia search: %v", chaterrors.ErrSearchUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: wikipedia search status %d", chaterrors.ErrSearchUnavailable, resp.StatusCode())
	}
	titles := make([]string, 0, len(out.Query.Search))
	for _, s := range out.Query.Search {
		titles = append(titles, s.Title)
	}
	return titles, nil
}

func (w *Wikipedia) extract(ctx context.Context, title string) (string, error) {
	var out wikiExtractResponse
	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"action":      "query",
			"prop":        "extracts",
			"exintro":     "1",
			"explaintext": "1",
			"exsentences": strconv.Itoa(w.opts.Sentences),
			"redirects":   "1",
			"titles":      title,
			"format":      "json",
		}).
		SetResult(&out).
		Get("/w/api.php")
	if err != nil {
		return "", fmt.Errorf("%w: wikipedia extract: %v", chaterrors.ErrSearchUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: wikipedia extract status %d", chaterrors.ErrSearchUnavailable, resp.StatusCode())
	}
	for _, page := range out.Query.Pages {
		if page.Missing != nil {
			continue
		}
		if text := strings.TrimSpace(page.Extract); text != "" && !strings.Contains(text, "may refer to:") {
			return text, nil
		}
	}
	return "", nil
}
