package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 支付事件类型
const (
	EventPaymentAuthorized     = "payment.authorized"
	EventPaymentCaptured       = "payment.captured"
	EventPaymentVoided         = "payment.voided"
	EventPaymentRefunded       = "payment.refunded"
	EventSubscriptionStarted   = "subscription.started"
	EventSubscriptionPaused    = "subscription.paused"
	EventSubscriptionResumed   = "subscription.resumed"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventSubscriptionSuspended = "subscription.suspended"
	EventSubscriptionCompleted = "subscription.completed"
	EventSubscriptionPaid      = "subscription.payment_succeeded"
	EventSubscriptionPayFailed = "subscription.payment_failed"
)

type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// PaymentEvent 投递到 Kafka 的消息体
type PaymentEvent struct {
	EventID        string          `json:"event_id"`
	Event          string          `json:"event"`
	EntryID        int64           `json:"entry_id"`
	FeedID         int64           `json:"feed_id"`
	Mode           string          `json:"mode"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	CustomerID     string          `json:"customer_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentStatus  string          `json:"payment_status"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
