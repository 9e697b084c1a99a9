// Package store 基于 gorm 持久化文章与订阅源
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"newshub/internal/model"
)

// ErrDuplicate 违反 URL 唯一约束
var ErrDuplicate = errors.New("article already stored")

// StoreWriteError 单篇文章写入失败, 不影响同批次其他文章
type StoreWriteError struct {
	URL string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store %s: %v", e.URL, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// InsertResult 批量写入结果
type InsertResult struct {
	Inserted []model.Article
	Failed   []*StoreWriteError
}

type Store struct {
	db    *gorm.DB
	table string
}

// Open 打开 sqlite 数据库并自动迁移
func Open(path, table string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db, table)
}

// New 基于已有连接创建 Store
func New(db *gorm.DB, table string) (*Store, error) {
	if err := db.Table(table).AutoMigrate(&model.Article{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", table, err)
	}
	if err := db.AutoMigrate(&model.Feed{}); err != nil {
		return nil, fmt.Errorf("migrate feeds: %w", err)
	}
	return &Store{db: db, table: table}, nil
}

func (s *Store) articles(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

// Exists 按 URL 查重
func (s *Store) Exists(ctx context.Context, url string) (bool, error) {
	var count int64
	err := s.articles(ctx).Where("url = ?", url).Limit(1).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", url, err)
	}
	return count > 0, nil
}

// InsertMany 逐条写入, 单条失败不中断整批
func (s *Store) InsertMany(ctx context.Context, articles []model.Article) InsertResult {
	var result InsertResult
	for _, article := range articles {
		article.PublishedAt = article.PublishedAt.UTC()
		if err := s.articles(ctx).Create(&article).Error; err != nil {
			if isDuplicate(err) {
				err = ErrDuplicate
			}
			result.Failed = append(result.Failed, &StoreWriteError{URL: article.URL, Err: err})
			continue
		}
		result.Inserted = append(result.Inserted, article)
	}
	return result
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Recent 最新文章, 按发布时间倒序
func (s *Store) Recent(ctx context.Context, limit int, since time.Time) ([]model.Article, error) {
	query := s.articles(ctx)
	if !since.IsZero() {
		// sqlite 按字符串比较时间, 需与入库时一致使用 UTC
		query = query.Where("published_at >= ?", since.UTC())
	}

	var articles []model.Article
	err := query.Order("published_at DESC").Order("id DESC").Limit(limit).Find(&articles).Error
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	return articles, nil
}

// Ranked 已有相关度评分的文章, 评分高者在前
func (s *Store) Ranked(ctx context.Context, limit int) ([]model.Article, error) {
	var articles []model.Article
	err := s.articles(ctx).
		Where("relevance IS NOT NULL").
		Order("relevance DESC").
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		return nil, fmt.Errorf("query ranked: %w", err)
	}
	return articles, nil
}

type Counts struct {
	TotalArticles  int64 `json:"total_articles"`
	RankedArticles int64 `json:"ranked_articles"`
	TotalFeeds     int64 `json:"total_feeds"`
	EnabledFeeds   int64 `json:"enabled_feeds"`
}

// Counts 统计
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	db := s.db.WithContext(ctx)
	if err := s.articles(ctx).Count(&c.TotalArticles).Error; err != nil {
		return c, err
	}
	if err := s.articles(ctx).Where("relevance IS NOT NULL").Count(&c.RankedArticles).Error; err != nil {
		return c, err
	}
	if err := db.Model(&model.Feed{}).Count(&c.TotalFeeds).Error; err != nil {
		return c, err
	}
	if err := db.Model(&model.Feed{}).Where("enabled = ?", true).Count(&c.EnabledFeeds).Error; err != nil {
		return c, err
	}
	return c, nil
}

// Close 关闭连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
