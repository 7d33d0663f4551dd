package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const (
	PaymentTypeOneTime      = "one_time"
	PaymentTypeSubscription = "subscription"

	TransactionTypeSale          = "sale"
	TransactionTypeAuthorization = "authorization"

	PlanTypeExisting = "existing"
	PlanTypeOneOff   = "one_off"

	// FormTotalField 出现在 TransactionFields 中时，表单所有产品都计入金额
	FormTotalField = "form_total"

	existingPlanPrefix = "plan_"
)

// 订阅周期
const (
	FrequencyWeekly     = 0
	FrequencyBiWeekly   = 1
	FrequencyMonthly    = 3
	FrequencyQuarterly  = 4
	FrequencyBiAnnually = 5
	FrequencyAnnually   = 6
)

var validFrequencies = map[int]bool{
	FrequencyWeekly:     true,
	FrequencyBiWeekly:   true,
	FrequencyMonthly:    true,
	FrequencyQuarterly:  true,
	FrequencyBiAnnually: true,
	FrequencyAnnually:   true,
}

var ErrInvalidFeedConfig = errors.New("feed 配置不合法")

// FeedMeta feed 的可编辑配置，以 JSON 存储
//
// FieldMap 把逻辑字段名映射到表单字段 ID，例如
// customer_info_email -> "3"，billing_zip -> "4.5"
type FeedMeta struct {
	TransactionType             string            `json:"transaction_type,omitempty"`
	PlanType                    string            `json:"plan_type,omitempty"`
	PlanCode                    string            `json:"plan_code,omitempty"`
	PlanFrequency               *int              `json:"plan_frequency,omitempty"`
	PlanInterval                int               `json:"plan_interval,omitempty"`
	PlanDuration                int               `json:"plan_duration,omitempty"`
	PlanDescCustom              string            `json:"plan_desc_custom,omitempty"`
	CancelSetupFail             bool              `json:"cancel_setup_fail,omitempty"`
	SetupFeeEnabled             bool              `json:"setup_fee_enabled,omitempty"`
	SetupFeeProduct             string            `json:"setup_fee_product,omitempty"`
	TransactionFields           []string          `json:"transaction_fields,omitempty"`
	PaymentProfile              string            `json:"payment_profile,omitempty"`
	EmailReceipt                bool              `json:"email_receipt,omitempty"`
	UsePreviousFeedCustomerInfo bool              `json:"use_previous_feed_customer_info,omitempty"`
	FieldMap                    map[string]string `json:"field_map,omitempty"`
	ReportData                  map[string]string `json:"report_data,omitempty"`
}

// Feed 表单与支付行为的绑定配置
type Feed struct {
	ID          int64                                `gorm:"primaryKey;autoIncrement" json:"id"`
	FormID      int64                                `gorm:"index;not null" json:"form_id"`
	Name        string                               `gorm:"type:varchar(128);not null" json:"name"`
	IsActive    bool                                 `gorm:"not null" json:"is_active"`
	SortOrder   int                                  `gorm:"not null;default:0" json:"sort_order"`
	Mode        string                               `gorm:"type:varchar(8);not null" json:"mode"`
	PaymentType string                               `gorm:"type:varchar(16);not null" json:"payment_type"`
	Meta        datatypes.JSONType[FeedMeta]         `json:"meta"`
	Condition   datatypes.JSONType[ConditionalLogic] `json:"condition"`
	CreatedAt   time.Time                            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time                            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Feed) TableName() string {
	return "feed"
}

// ============================================================================
// 类型化配置：每种支付/计划类型一个结构，处理提交前统一解析
// ============================================================================

type FeedConfig interface {
	PaymentType() string
}

// OneTimeFeedConfig 一次性支付
type OneTimeFeedConfig struct {
	TransactionType   string
	TransactionFields []string
	PaymentProfile    string
	EmailReceipt      bool
	ReportData        map[string]string
}

func (OneTimeFeedConfig) PaymentType() string { return PaymentTypeOneTime }

// SubscriptionExistingPlanConfig 使用网关上已存在的计划
// PlanCode 与 PlanField 二选一
type SubscriptionExistingPlanConfig struct {
	PlanCode  string
	PlanField string
}

func (SubscriptionExistingPlanConfig) PaymentType() string { return PaymentTypeSubscription }

// SubscriptionOneOffConfig 按提交内容临时生成计划
type SubscriptionOneOffConfig struct {
	TransactionFields []string
	Frequency         int
	Interval          int
	Duration          int
	Description       string
	CancelOnSetupFail bool
	SetupFeeProduct   string
	PaymentProfile    string
}

func (SubscriptionOneOffConfig) PaymentType() string { return PaymentTypeSubscription }

// ResolveConfig 把 FeedMeta 解析成类型化配置
func (f *Feed) ResolveConfig() (FeedConfig, error) {
	meta := f.Meta.Data()

	switch f.PaymentType {
	case PaymentTypeOneTime:
		if meta.TransactionType != TransactionTypeSale && meta.TransactionType != TransactionTypeAuthorization {
			return nil, fmt.Errorf("%w: feed %d transaction_type=%q", ErrInvalidFeedConfig, f.ID, meta.TransactionType)
		}
		return OneTimeFeedConfig{
			TransactionType:   meta.TransactionType,
			TransactionFields: meta.TransactionFields,
			PaymentProfile:    meta.PaymentProfile,
			EmailReceipt:      meta.EmailReceipt,
			ReportData:        meta.ReportData,
		}, nil

	case PaymentTypeSubscription:
		switch meta.PlanType {
		case PlanTypeExisting:
			if meta.PlanCode == "" {
				return nil, fmt.Errorf("%w: feed %d 缺少 plan_code", ErrInvalidFeedConfig, f.ID)
			}
			if strings.HasPrefix(meta.PlanCode, existingPlanPrefix) {
				return SubscriptionExistingPlanConfig{PlanCode: strings.TrimPrefix(meta.PlanCode, existingPlanPrefix)}, nil
			}
			return SubscriptionExistingPlanConfig{PlanField: meta.PlanCode}, nil

		case PlanTypeOneOff:
			if meta.PlanFrequency == nil || !validFrequencies[*meta.PlanFrequency] {
				return nil, fmt.Errorf("%w: feed %d plan_frequency 不合法", ErrInvalidFeedConfig, f.ID)
			}
			cfg := SubscriptionOneOffConfig{
				TransactionFields: meta.TransactionFields,
				Frequency:         *meta.PlanFrequency,
				Duration:          meta.PlanDuration,
				Description:       meta.PlanDescCustom,
				CancelOnSetupFail: meta.CancelSetupFail,
				PaymentProfile:    meta.PaymentProfile,
			}
			if cfg.Duration == 0 {
				cfg.Duration = -1
			}
			if cfg.Frequency == FrequencyMonthly {
				cfg.Interval = meta.PlanInterval
				if cfg.Interval <= 0 {
					cfg.Interval = 1
				}
			}
			if meta.SetupFeeEnabled {
				cfg.SetupFeeProduct = meta.SetupFeeProduct
			}
			return cfg, nil

		default:
			return nil, fmt.Errorf("%w: feed %d plan_type=%q", ErrInvalidFeedConfig, f.ID, meta.PlanType)
		}

	default:
		return nil, fmt.Errorf("%w: feed %d payment_type=%q", ErrInvalidFeedConfig, f.ID, f.PaymentType)
	}
}

// IsExistingPlan 已有计划的订阅允许首期金额为 0
func (f *Feed) IsExistingPlan() bool {
	return f.PaymentType == PaymentTypeSubscription && f.Meta.Data().PlanType == PlanTypeExisting
}
