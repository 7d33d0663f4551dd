package repository

import (
	"context"
	"errors"

	"formpay/internal/model"

	"gorm.io/gorm"
)

var ErrFeedNotFound = errors.New("feed 不存在")

type FeedRepository struct {
	db *gorm.DB
}

func NewFeedRepository(db *gorm.DB) *FeedRepository {
	return &FeedRepository{db: db}
}

func (r *FeedRepository) Create(ctx context.Context, feed *model.Feed) error {
	return r.db.WithContext(ctx).Create(feed).Error
}

func (r *FeedRepository) GetByID(ctx context.Context, id int64) (*model.Feed, error) {
	var feed model.Feed
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&feed).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeedNotFound
		}
		return nil, err
	}
	return &feed, nil
}

// ListByFormID 按配置顺序返回表单的 feed
func (r *FeedRepository) ListByFormID(ctx context.Context, formID int64, activeOnly bool) ([]*model.Feed, error) {
	var feeds []*model.Feed
	query := r.db.WithContext(ctx).Where("form_id = ?", formID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("sort_order ASC").Order("id ASC").Find(&feeds).Error
	return feeds, err
}
