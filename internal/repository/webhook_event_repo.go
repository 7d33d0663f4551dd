package repository

import (
	"context"
	"time"

	"formpay/internal/model"

	"gorm.io/gorm"
)

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Create(ctx context.Context, event *model.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// MarkProcessed 记录处理结果，processingErr 为空表示处理成功
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id int64, processingErr string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_at":     &now,
			"processing_error": processingErr,
		}).Error
}

func (r *WebhookEventRepository) ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]*model.WebhookEvent, error) {
	var events []*model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
