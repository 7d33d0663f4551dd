package gateway

import (
	"context"

	"formpay/internal/config"

	"github.com/shopspring/decimal"
)

// API 业务侧依赖的网关能力，*Client 是唯一的生产实现
type API interface {
	Mode() string
	MerchantID() string

	AddCustomer(ctx context.Context, req *AddCustomerRequest) (*Customer, error)
	DeleteCustomer(ctx context.Context, customerID string) error
	AddBillingCard(ctx context.Context, customerID string, req *BillingCardRequest) error
	DeleteBillingCard(ctx context.Context, customerID, cardID string) error
	GetBillingCards(ctx context.Context, customerID string) ([]BillingCardInfo, error)

	Authorize(ctx context.Context, req *TransactionRequest) (*PGResponse, error)
	Sale(ctx context.Context, req *TransactionRequest) (*PGResponse, error)
	Capture(ctx context.Context, pgID string, amount decimal.Decimal) (*PGResponse, error)
	Refund(ctx context.Context, pgID string, amount decimal.Decimal) (*PGResponse, error)
	Void(ctx context.Context, pgID string) (*PGResponse, error)

	AddSubscription(ctx context.Context, req *SubscriptionRequest) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID, customerID string) error
	PauseSubscription(ctx context.Context, subscriptionID, customerID string) error
	ResumeSubscription(ctx context.Context, subscriptionID, customerID string) error

	GetMerchantSettings(ctx context.Context) (map[string]interface{}, error)
	GetPlans(ctx context.Context) ([]Plan, error)
	GetTransientKey(ctx context.Context) (string, error)
	AddWebhook(ctx context.Context, req *WebhookRequest) (*Webhook, error)
	GetWebhook(ctx context.Context, webhookID string) (*Webhook, error)
	DisableWebhook(ctx context.Context, webhookID string) error
	BrowseWebhooks(ctx context.Context, count int) ([]Webhook, error)
}

// Provider 按环境获取网关客户端
type Provider interface {
	API(mode string) (API, error)
}

// Registry 持有 test / live 两个客户端
type Registry struct {
	clients map[string]*Client
}

func NewRegistry(cfg *config.GatewayConfig) *Registry {
	return &Registry{
		clients: map[string]*Client{
			config.ModeTest: NewClient(config.ModeTest, &cfg.Test, cfg),
			config.ModeLive: NewClient(config.ModeLive, &cfg.Live, cfg),
		},
	}
}

func (r *Registry) API(mode string) (API, error) {
	client, ok := r.clients[mode]
	if !ok {
		return nil, config.ErrUnknownMode
	}
	return client, nil
}
