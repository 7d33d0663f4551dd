package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ============================================================================
// 支付状态
// ============================================================================

const (
	PaymentStatusAuthorized = "Authorized"
	PaymentStatusPaid       = "Paid"
	PaymentStatusVoided     = "Voided"
	PaymentStatusRefunded   = "Refunded"
	PaymentStatusActive     = "Active"
	PaymentStatusPaused     = "Paused"
	PaymentStatusCancelled  = "Cancelled"
	PaymentStatusFailed     = "Failed"

	// 以下状态来自网关订阅状态码
	PaymentStatusSuspended = "Suspended"
	PaymentStatusComplete  = "Complete"
	PaymentStatusCanceled  = "Canceled"
)

// ValidStatusTransitions 后台操作允许的状态流转
// webhook 推送的状态以网关为准，不走这张表
var ValidStatusTransitions = map[string][]string{
	PaymentStatusAuthorized: {PaymentStatusVoided, PaymentStatusPaid},
	PaymentStatusPaid:       {PaymentStatusRefunded},
	PaymentStatusActive:     {PaymentStatusPaused, PaymentStatusCancelled},
	PaymentStatusPaused:     {PaymentStatusActive, PaymentStatusCancelled},
	PaymentStatusSuspended:  {PaymentStatusActive, PaymentStatusCancelled},
	PaymentStatusFailed:     {PaymentStatusActive, PaymentStatusCancelled},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

const (
	EntryTransactionTypePayment      = 1
	EntryTransactionTypeSubscription = 2

	PaymentGatewaySlug = "qualpay"
)

// ============================================================================
// 表单提交记录
// ============================================================================

// ProductOption 产品附加选项，价格累加到单价
type ProductOption struct {
	Name  string          `json:"option_name"`
	Price decimal.Decimal `json:"price"`
}

// ProductLine 表单计算出的产品行
type ProductLine struct {
	FieldID  string          `json:"field_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Options  []ProductOption `json:"options,omitempty"`
}

// ShippingLine 运费行
type ShippingLine struct {
	FieldID string          `json:"field_id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
}

// Entry 表单提交记录
// 只有全部 feed 的网关操作成功后才会落库
type Entry struct {
	ID              int64                                `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo         string                               `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"`
	FormID          int64                                `gorm:"index;not null" json:"form_id"`
	CreatedBy       *int64                               `gorm:"index" json:"created_by"`
	Values          datatypes.JSONType[map[string]string] `json:"values"`
	Products        datatypes.JSONType[[]ProductLine]     `json:"products"`
	Shipping        datatypes.JSONType[*ShippingLine]     `json:"shipping"`
	Currency        string                               `gorm:"type:varchar(8)" json:"currency"`
	PaymentStatus   string                               `gorm:"type:varchar(20);index" json:"payment_status"`
	PaymentAmount   decimal.Decimal                      `gorm:"type:decimal(12,2)" json:"payment_amount"`
	PaymentDate     *time.Time                           `json:"payment_date"`
	PaymentMethod   string                               `gorm:"type:varchar(32)" json:"payment_method"`
	TransactionID   string                               `gorm:"type:varchar(64)" json:"transaction_id"`
	TransactionType int                                  `json:"transaction_type"`
	IsFulfilled     bool                                 `json:"is_fulfilled"`
	PaymentGateway  string                               `gorm:"type:varchar(32)" json:"payment_gateway"`
	PaymentMode     string                               `gorm:"type:varchar(8)" json:"payment_mode"`
	CreatedAt       time.Time                            `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time                            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Entry) TableName() string {
	return "entry"
}

// Value 读取某个表单字段的原始值
func (e *Entry) Value(fieldID string) string {
	return e.Values.Data()[fieldID]
}

const (
	NoteTypeSuccess = "success"
	NoteTypeError   = "error"
	NoteTypeNote    = "note"
)

// EntryNote 提交记录上的审计备注
type EntryNote struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryID   int64     `gorm:"index;not null" json:"entry_id"`
	NoteType  string    `gorm:"type:varchar(16);not null" json:"note_type"`
	Content   string    `gorm:"type:varchar(512);not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (EntryNote) TableName() string {
	return "entry_note"
}
