// Package fetcher 从外部新闻源抓取候选文章
package fetcher

//go:generate go run go.uber.org/mock/mockgen -destination=../mocks/fetcher_mock.go -package=mocks newshub/internal/fetcher Fetcher

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"newshub/internal/model"
)

// Fetcher 候选文章来源
type Fetcher interface {
	// Name 日志与调度器中使用的名称
	Name() string
	Fetch(ctx context.Context) ([]model.RawArticle, error)
}

// FetchError 源不可达或返回格式错误, 本轮放弃, 下一轮自然重试
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Blocklist 按来源名称或主机名(小写)屏蔽
type Blocklist struct {
	entries map[string]struct{}
}

func NewBlocklist(entries []string) *Blocklist {
	b := &Blocklist{entries: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			b.entries[e] = struct{}{}
		}
	}
	return b
}

// Blocked 判断文章是否来自屏蔽源
func (b *Blocklist) Blocked(a model.RawArticle) bool {
	if b == nil || len(b.entries) == 0 {
		return false
	}
	if _, ok := b.entries[strings.ToLower(strings.TrimSpace(a.SourceName))]; ok {
		return true
	}
	host := Host(a.URL)
	if host == "" {
		return false
	}
	if _, ok := b.entries[host]; ok {
		return true
	}
	_, ok := b.entries["www."+host]
	return ok
}

// Filter 过滤屏蔽源, 返回保留的文章及丢弃数量
func (b *Blocklist) Filter(articles []model.RawArticle) ([]model.RawArticle, int) {
	kept := articles[:0:0]
	for _, a := range articles {
		if b.Blocked(a) {
			continue
		}
		kept = append(kept, a)
	}
	return kept, len(articles) - len(kept)
}

// Host 小写主机名, 去掉 "www." 前缀
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

type filtered struct {
	Fetcher
	blocklist *Blocklist
}

// WithBlocklist 包装 Fetcher, 返回前过滤屏蔽源
func WithBlocklist(f Fetcher, b *Blocklist) Fetcher {
	return &filtered{Fetcher: f, blocklist: b}
}

func (f *filtered) Fetch(ctx context.Context) ([]model.RawArticle, error) {
	articles, err := f.Fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	kept, dropped := f.blocklist.Filter(articles)
	if dropped > 0 {
		log.Printf("[Fetcher] %s: dropped %d article(s) from blocked sources", f.Name(), dropped)
	}
	return kept, nil
}
