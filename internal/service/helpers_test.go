package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"formpay/internal/config"
	"formpay/internal/infrastructure/database"
	"formpay/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "formpay.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{Topic: config.KafkaTopicConfig{PaymentEvent: "payment_event"}},
		Gateway: config.GatewayConfig{
			CallbackURL:  "https://shop.example.com/callback/qualpay",
			WebhookLabel: "formpay",
			Test: config.GatewayEnvConfig{
				MerchantID:    "212000",
				APIKey:        "test-key",
				WebhookSecret: "whsec",
			},
			Live: config.GatewayEnvConfig{
				MerchantID: "212001",
				APIKey:     "live-key",
			},
		},
		Business: config.BusinessConfig{
			MaxRetryCount:     3,
			ActionLockSeconds: 30,
			CustomerRole:      "payment_customer",
		},
	}
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func int64Ptr(v int64) *int64 { return &v }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// customerFieldMap 表单字段 1..9 依次映射到客户信息和账单地址
func customerFieldMap() map[string]string {
	return map[string]string{
		FieldCustomerEmail:     "1",
		FieldCustomerFirstName: "2",
		FieldCustomerLastName:  "3",
		"billing_zip":          "4",
		"shipping_zip":         "6",
	}
}

func customerValues() map[string]string {
	return map[string]string{
		"1": "jane@example.com",
		"2": "Jane",
		"3": "Doe",
		"4": "94105",
	}
}

func testForm() *model.Form {
	return &model.Form{ID: 1, Title: "Order Form", Currency: "USD"}
}

func widgetEntry(values map[string]string) *model.Entry {
	return &model.Entry{
		FormID:   1,
		Values:   datatypes.NewJSONType(values),
		Products: datatypes.NewJSONType([]model.ProductLine{{FieldID: "5", Name: "Widget", Price: dec("25.00"), Quantity: dec("1")}}),
		Currency: "USD",
	}
}

func oneTimeFeed(id int64, transactionType string) *model.Feed {
	return &model.Feed{
		ID:          id,
		FormID:      1,
		Name:        "one time",
		IsActive:    true,
		Mode:        config.ModeTest,
		PaymentType: model.PaymentTypeOneTime,
		Meta: datatypes.NewJSONType(model.FeedMeta{
			TransactionType:   transactionType,
			TransactionFields: []string{"5"},
			FieldMap:          customerFieldMap(),
		}),
	}
}

func oneOffSubscriptionFeed(id int64) *model.Feed {
	return &model.Feed{
		ID:          id,
		FormID:      1,
		Name:        "monthly",
		IsActive:    true,
		Mode:        config.ModeTest,
		PaymentType: model.PaymentTypeSubscription,
		Meta: datatypes.NewJSONType(model.FeedMeta{
			PlanType:                    model.PlanTypeOneOff,
			PlanFrequency:               intPtr(model.FrequencyMonthly),
			PlanInterval:                2,
			TransactionFields:           []string{"5"},
			UsePreviousFeedCustomerInfo: true,
			FieldMap:                    customerFieldMap(),
		}),
	}
}

func newCardInput() *SubmissionInput {
	return &SubmissionInput{
		FormID: 1,
		Values: customerValues(),
		Payment: PaymentInput{
			Method:     PaymentMethodCreditCard,
			Token:      "card-token-1",
			CardNumber: "XXXXXXXXXXXX1111",
			CardType:   "VS",
			TypeID:     "VS",
		},
	}
}

func seedForm(t *testing.T, db *gorm.DB) *model.Form {
	t.Helper()
	form := &model.Form{Title: "Order Form", Currency: "USD"}
	if err := db.WithContext(context.Background()).Create(form).Error; err != nil {
		t.Fatalf("seed form: %v", err)
	}
	return form
}
