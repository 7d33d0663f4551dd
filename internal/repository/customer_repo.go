package repository

import (
	"context"
	"errors"

	"formpay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// GetCustomerID 查询用户在某环境 / 商户下的网关客户 ID，不存在返回空串
func (r *CustomerRepository) GetCustomerID(ctx context.Context, userID int64, merchantID, mode string) (string, error) {
	var identity model.CustomerIdentity
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND merchant_id = ? AND mode = ?", userID, merchantID, mode).
		First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return identity.CustomerID, nil
}

// SaveCustomerIDIfAbsent 已有记录时不覆盖
func (r *CustomerRepository) SaveCustomerIDIfAbsent(ctx context.Context, tx *gorm.DB, identity *model.CustomerIdentity) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(identity).Error
}

// ListCards 默认卡排在最前
func (r *CustomerRepository) ListCards(ctx context.Context, userID int64, mode string) ([]*model.BillingCard, error) {
	var cards []*model.BillingCard
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if mode != "" {
		query = query.Where("mode = ?", mode)
	}
	err := query.Order("is_default DESC").Order("id ASC").Find(&cards).Error
	return cards, err
}

// GetCard 查询用户在某环境、某商户下保存的卡，不存在返回 nil, nil
func (r *CustomerRepository) GetCard(ctx context.Context, userID int64, mode, merchantID, cardID string) (*model.BillingCard, error) {
	var card model.BillingCard
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND mode = ? AND merchant_id = ? AND card_id = ?", userID, mode, merchantID, cardID).
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// SaveCard 保存卡，每个用户同一环境下只有一张默认卡
func (r *CustomerRepository) SaveCard(ctx context.Context, tx *gorm.DB, card *model.BillingCard) error {
	if tx == nil {
		tx = r.db
	}
	if card.IsDefault {
		err := tx.WithContext(ctx).
			Model(&model.BillingCard{}).
			Where("user_id = ? AND mode = ? AND is_default = ?", card.UserID, card.Mode, true).
			Update("is_default", false).Error
		if err != nil {
			return err
		}
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(card).Error
}

// DeleteCard 删除某环境下保存的卡，返回删除条数
func (r *CustomerRepository) DeleteCard(ctx context.Context, tx *gorm.DB, cardID, mode string) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Where("card_id = ? AND mode = ?", cardID, mode).
		Delete(&model.BillingCard{})
	return result.RowsAffected, result.Error
}
