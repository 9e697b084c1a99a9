package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"newshub/internal/model"
	"newshub/internal/textutil"
)

// FeedLister 提供当前启用的订阅源
type FeedLister interface {
	EnabledFeeds(ctx context.Context) ([]model.Feed, error)
}

// FeedFetcher 使用 gofeed 解析所有启用的 RSS/Atom 源
type FeedFetcher struct {
	feeds  FeedLister
	parser *gofeed.Parser
	limit  int
}

func NewFeedFetcher(feeds FeedLister, perFeedLimit int) *FeedFetcher {
	return &FeedFetcher{
		feeds:  feeds,
		parser: gofeed.NewParser(),
		limit:  perFeedLimit,
	}
}

func (f *FeedFetcher) Name() string { return "feed" }

// Fetch 并发抓取所有 Feed, 单个 Feed 失败只记录日志
func (f *FeedFetcher) Fetch(ctx context.Context) ([]model.RawArticle, error) {
	feeds, err := f.feeds.EnabledFeeds(ctx)
	if err != nil {
		return nil, &FetchError{Source: f.Name(), Err: err}
	}
	if len(feeds) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		articles []model.RawArticle
		failed   []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, feed := range feeds {
		feed := feed
		g.Go(func() error {
			items, err := f.FetchFeed(gctx, feed)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("[Fetcher] feed %q: %v", feed.Name, err)
				failed = append(failed, fmt.Errorf("%s: %w", feed.Name, err))
				return nil
			}
			articles = append(articles, items...)
			return nil
		})
	}
	g.Wait()

	if len(failed) == len(feeds) {
		return nil, &FetchError{Source: f.Name(), Err: errors.Join(failed...)}
	}
	return articles, nil
}

// FetchFeed 抓取单个Feed
func (f *FeedFetcher) FetchFeed(ctx context.Context, feed model.Feed) ([]model.RawArticle, error) {
	parsed, err := f.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, err
	}

	items := parsed.Items
	if f.limit > 0 && len(items) > f.limit {
		items = items[:f.limit]
	}

	articles := make([]model.RawArticle, 0, len(items))
	for _, item := range items {
		description := item.Description
		if description == "" {
			description = item.Content
		}
		articles = append(articles, model.RawArticle{
			Title:       textutil.CollapseSpace(item.Title),
			URL:         strings.TrimSpace(item.Link),
			SourceName:  feed.Name,
			Description: textutil.StripHTML(description),
			PublishedAt: parseItemTime(item),
			ImageURL:    itemImage(item),
			Category:    itemCategory(item),
		})
	}
	return articles, nil
}

func parseItemTime(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		return &t
	}
	if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		return &t
	}
	return nil
}

func itemCategory(item *gofeed.Item) string {
	for _, c := range item.Categories {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}
