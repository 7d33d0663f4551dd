package model

import (
	"time"
)

// CustomerIdentity 本地用户与网关客户的对应关系
// 同一用户在不同环境 / 商户下有各自的客户 ID，创建后不再修改
type CustomerIdentity struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"uniqueIndex:uk_user_merchant_mode;not null" json:"user_id"`
	MerchantID string    `gorm:"uniqueIndex:uk_user_merchant_mode;type:varchar(32);not null" json:"merchant_id"`
	Mode       string    `gorm:"uniqueIndex:uk_user_merchant_mode;type:varchar(8);not null" json:"mode"`
	CustomerID string    `gorm:"type:varchar(64);not null" json:"customer_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CustomerIdentity) TableName() string {
	return "customer_identity"
}

// ACH 账户类型码，K / V 为企业账户，持卡人名称使用公司名
const (
	CardTypeACH = "ACH"

	ACHTypeBusinessChecking = "K"
	ACHTypeBusinessSavings  = "V"
)

// BillingCard 用户保存的卡（只保存网关 token 与脱敏信息）
type BillingCard struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"uniqueIndex:uk_user_card;not null" json:"user_id"`
	CardID     string    `gorm:"uniqueIndex:uk_user_card;type:varchar(64);not null" json:"card_id"`
	CardNumber string    `gorm:"type:varchar(32)" json:"card_number"`
	Last4      string    `gorm:"type:varchar(4)" json:"last4"`
	CardType   string    `gorm:"type:varchar(32)" json:"card_type"`
	TypeID     string    `gorm:"type:varchar(4)" json:"type_id"`
	BillingZip string    `gorm:"type:varchar(16)" json:"billing_zip"`
	Mode       string    `gorm:"type:varchar(8);index;not null" json:"mode"`
	MerchantID string    `gorm:"type:varchar(32);not null" json:"merchant_id"`
	IsDefault  bool      `gorm:"not null;default:false" json:"is_default"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (BillingCard) TableName() string {
	return "billing_card"
}

// IsBusinessACH 企业 ACH 账户
func (c *BillingCard) IsBusinessACH() bool {
	return c.CardType == CardTypeACH && (c.TypeID == ACHTypeBusinessChecking || c.TypeID == ACHTypeBusinessSavings)
}
