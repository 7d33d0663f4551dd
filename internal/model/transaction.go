package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ============================================================================
// 网关操作类型
// ============================================================================

const (
	ActionAuthorize = "authorize"
	ActionCapture   = "capture"
	ActionSubscribe = "subscribe"
)

// CapturedPayment 实际扣款记录：销售交易的镜像，或订阅首付费用的扣款结果
type CapturedPayment struct {
	Name          string          `json:"name,omitempty"`
	IsSuccess     bool            `json:"is_success"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
}

// TransactionRecord 一个 feed 在一次提交上的执行结果（transaction_info）
//
// 【重要】Action 只在创建时写入，之后任何更新都不会修改它；
// 冲正只能针对对应的正向操作：authorize->void，capture->refund，subscribe->cancel
type TransactionRecord struct {
	ID                    int64                               `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryID               int64                               `gorm:"uniqueIndex:uk_entry_feed;not null" json:"entry_id"`
	FeedID                int64                               `gorm:"uniqueIndex:uk_entry_feed;not null" json:"feed_id"`
	Mode                  string                              `gorm:"type:varchar(8);not null" json:"mode"`
	Action                string                              `gorm:"<-:create;type:varchar(16);not null" json:"action"`
	IsSuccess             bool                                `gorm:"not null" json:"is_success"`
	TransactionID         string                              `gorm:"type:varchar(64);index" json:"transaction_id,omitempty"`
	SubscriptionID        string                              `gorm:"type:varchar(64);index" json:"subscription_id,omitempty"`
	SubscriptionStartDate string                              `gorm:"type:varchar(16)" json:"subscription_start_date,omitempty"`
	Amount                decimal.Decimal                     `gorm:"type:decimal(12,2)" json:"amount"`
	CustomerID            string                              `gorm:"type:varchar(64)" json:"customer_id"`
	PaymentMethod         string                              `gorm:"type:varchar(32)" json:"payment_method"`
	PaymentStatus         string                              `gorm:"type:varchar(20)" json:"payment_status"`
	ErrorMessage          string                              `gorm:"type:varchar(512)" json:"error_message,omitempty"`
	CapturedPayment       datatypes.JSONType[*CapturedPayment] `json:"captured_payment"`
	CreatedAt             time.Time                           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time                           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TransactionRecord) TableName() string {
	return "transaction_info"
}

// InverseAction 冲正操作名，用于日志和校验
func InverseAction(action string) string {
	switch action {
	case ActionAuthorize:
		return "void"
	case ActionCapture:
		return "refund"
	case ActionSubscribe:
		return "cancel"
	default:
		return ""
	}
}
