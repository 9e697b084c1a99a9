package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"newshub/internal/cache"
	"newshub/internal/model"
)

// ArticleReader 读取已入库文章
type ArticleReader interface {
	Recent(ctx context.Context, limit int, since time.Time) ([]model.Article, error)
	Ranked(ctx context.Context, limit int) ([]model.Article, error)
}

type NewsService struct {
	reader ArticleReader
	maxAge time.Duration
	now    func() time.Time

	cache *cache.TTL[string, []model.Article]
	group singleflight.Group
}

func NewNewsService(reader ArticleReader, maxAge, ttl time.Duration) *NewsService {
	return &NewsService{
		reader: reader,
		maxAge: maxAge,
		now:    time.Now,
		cache:  cache.NewTTL[string, []model.Article](ttl),
	}
}

// GetRecent 最新文章, 发布时间倒序. 缓存只按时间失效;
// 存储出错时返回最近一次缓存(即使已过期), 没有则返回空列表.
func (s *NewsService) GetRecent(ctx context.Context, limit int) []model.Article {
	return s.read(ctx, fmt.Sprintf("recent:%d", limit), func(ctx context.Context) ([]model.Article, error) {
		var since time.Time
		if s.maxAge > 0 {
			since = s.now().UTC().Add(-s.maxAge)
		}
		return s.reader.Recent(ctx, limit, since)
	})
}

// GetRanked 已评分文章, 相关度倒序
func (s *NewsService) GetRanked(ctx context.Context, limit int) []model.Article {
	return s.read(ctx, fmt.Sprintf("ranked:%d", limit), func(ctx context.Context) ([]model.Article, error) {
		return s.reader.Ranked(ctx, limit)
	})
}

func (s *NewsService) read(ctx context.Context, key string, load func(context.Context) ([]model.Article, error)) []model.Article {
	if articles, ok := s.cache.Get(key); ok {
		return articles
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		articles, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if articles == nil {
			articles = []model.Article{}
		}
		s.cache.Set(key, articles)
		return articles, nil
	})
	if err != nil {
		log.Printf("[API] read %s: %v", key, err)
		if stale, ok := s.cache.Stale(key); ok {
			return stale
		}
		return []model.Article{}
	}
	return v.([]model.Article)
}
