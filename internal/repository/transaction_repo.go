package repository

import (
	"context"
	"errors"

	"formpay/internal/model"

	"gorm.io/gorm"
)

var ErrTransactionNotFound = errors.New("交易记录不存在")

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, record *model.TransactionRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(record).Error
}

func (r *TransactionRepository) GetByEntryAndFeed(ctx context.Context, entryID, feedID int64) (*model.TransactionRecord, error) {
	var record model.TransactionRecord
	err := r.db.WithContext(ctx).
		Where("entry_id = ? AND feed_id = ?", entryID, feedID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &record, nil
}

// ListByEntry 返回提交记录下的全部交易，按 feed 顺序
func (r *TransactionRepository) ListByEntry(ctx context.Context, entryID int64) ([]*model.TransactionRecord, error) {
	var records []*model.TransactionRecord
	err := r.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// GetBySubscriptionID webhook 按环境和订阅 ID 反查交易，找不到返回 nil, nil
func (r *TransactionRepository) GetBySubscriptionID(ctx context.Context, mode, subscriptionID string) (*model.TransactionRecord, error) {
	var record model.TransactionRecord
	err := r.db.WithContext(ctx).
		Where("mode = ? AND subscription_id = ?", mode, subscriptionID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// UpdateStatus 只更新 payment_status，action 永不修改
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, status string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.TransactionRecord{}).
		Where("id = ?", id).
		Update("payment_status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// DeleteAll 卸载时清空 transaction_info
func (r *TransactionRepository) DeleteAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.TransactionRecord{})
	return result.RowsAffected, result.Error
}
