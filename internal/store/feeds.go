package store

import (
	"context"
	"errors"
	"fmt"

	"newshub/internal/model"
)

var ErrFeedNotFound = errors.New("feed not found")

func (s *Store) ListFeeds(ctx context.Context) ([]model.Feed, error) {
	var feeds []model.Feed
	if err := s.db.WithContext(ctx).Order("id").Find(&feeds).Error; err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	return feeds, nil
}

// EnabledFeeds 获取所有启用的Feed
func (s *Store) EnabledFeeds(ctx context.Context) ([]model.Feed, error) {
	var feeds []model.Feed
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&feeds).Error; err != nil {
		return nil, fmt.Errorf("list enabled feeds: %w", err)
	}
	return feeds, nil
}

func (s *Store) CreateFeed(ctx context.Context, feed *model.Feed) error {
	if err := s.db.WithContext(ctx).Create(feed).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("feed %s: %w", feed.URL, ErrDuplicate)
		}
		return fmt.Errorf("create feed: %w", err)
	}
	return nil
}

func (s *Store) DeleteFeed(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.Feed{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete feed %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrFeedNotFound
	}
	return nil
}

// SeedFeeds 初始化默认订阅源, 已存在的 URL 保持不变
func (s *Store) SeedFeeds(ctx context.Context, feeds []model.Feed) error {
	for _, feed := range feeds {
		err := s.db.WithContext(ctx).
			Where("url = ?", feed.URL).
			Attrs(model.Feed{Name: feed.Name, Enabled: true}).
			FirstOrCreate(&model.Feed{URL: feed.URL}).Error
		if err != nil {
			return fmt.Errorf("seed feed %s: %w", feed.URL, err)
		}
	}
	return nil
}
