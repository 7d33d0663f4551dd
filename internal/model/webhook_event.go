package model

import (
	"time"
)

const (
	WebhookEventSubscriptionSuspended      = "subscription_suspended"
	WebhookEventSubscriptionComplete       = "subscription_complete"
	WebhookEventSubscriptionPaymentSuccess = "subscription_payment_success"
	WebhookEventSubscriptionPaymentFailure = "subscription_payment_failure"
)

// SubscribedWebhookEvents 注册 webhook 时订阅的事件
var SubscribedWebhookEvents = []string{
	WebhookEventSubscriptionSuspended,
	WebhookEventSubscriptionPaymentSuccess,
	WebhookEventSubscriptionPaymentFailure,
	WebhookEventSubscriptionComplete,
}

// WebhookEvent 每次回调的投递日志，验签失败的请求同样记录
type WebhookEvent struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	WebhookID       string     `gorm:"type:varchar(64);index" json:"webhook_id"`
	Event           string     `gorm:"type:varchar(64);index" json:"event"`
	Mode            string     `gorm:"type:varchar(8)" json:"mode"`
	SubscriptionID  string     `gorm:"type:varchar(64);index" json:"subscription_id"`
	Payload         string     `gorm:"type:text;not null" json:"payload"`
	SignatureValid  bool       `gorm:"not null" json:"signature_valid"`
	ProcessedAt     *time.Time `json:"processed_at"`
	ProcessingError string     `gorm:"type:varchar(512)" json:"processing_error,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_event"
}
