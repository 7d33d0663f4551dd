package service

import (
	"context"
	"fmt"
	"sync"

	"formpay/internal/config"
	"formpay/internal/gateway"

	"github.com/shopspring/decimal"
)

// fakeAPI 按需设置函数字段，未设置的方法返回成功的默认值；calls 记录调用顺序
type fakeAPI struct {
	mode       string
	merchantID string

	addCustomer        func(req *gateway.AddCustomerRequest) (*gateway.Customer, error)
	deleteCustomer     func(customerID string) error
	addBillingCard     func(customerID string, req *gateway.BillingCardRequest) error
	authorize          func(req *gateway.TransactionRequest) (*gateway.PGResponse, error)
	sale               func(req *gateway.TransactionRequest) (*gateway.PGResponse, error)
	capture            func(pgID string, amount decimal.Decimal) (*gateway.PGResponse, error)
	refund             func(pgID string, amount decimal.Decimal) (*gateway.PGResponse, error)
	void               func(pgID string) (*gateway.PGResponse, error)
	addSubscription    func(req *gateway.SubscriptionRequest) (*gateway.Subscription, error)
	cancelSubscription func(subscriptionID, customerID string) error
	pauseSubscription  func(subscriptionID, customerID string) error
	resumeSubscription func(subscriptionID, customerID string) error
	getPlans           func() ([]gateway.Plan, error)
	getWebhook         func(webhookID string) (*gateway.Webhook, error)
	addWebhook         func(req *gateway.WebhookRequest) (*gateway.Webhook, error)
	disableWebhook     func(webhookID string) error
	browseWebhooks     func(count int) ([]gateway.Webhook, error)
	merchantSettings   func() (map[string]interface{}, error)
	getBillingCards    func(customerID string) ([]gateway.BillingCardInfo, error)
	deleteBillingCard  func(customerID, cardID string) error

	mu    sync.Mutex
	calls []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{mode: config.ModeTest, merchantID: "212000"}
}

func (f *fakeAPI) record(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeAPI) count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeAPI) Mode() string       { return f.mode }
func (f *fakeAPI) MerchantID() string { return f.merchantID }

func (f *fakeAPI) AddCustomer(ctx context.Context, req *gateway.AddCustomerRequest) (*gateway.Customer, error) {
	f.record("add_customer:%s", req.CustomerID)
	if f.addCustomer != nil {
		return f.addCustomer(req)
	}
	return &gateway.Customer{CustomerID: req.CustomerID}, nil
}

func (f *fakeAPI) DeleteCustomer(ctx context.Context, customerID string) error {
	f.record("delete_customer:%s", customerID)
	if f.deleteCustomer != nil {
		return f.deleteCustomer(customerID)
	}
	return nil
}

func (f *fakeAPI) AddBillingCard(ctx context.Context, customerID string, req *gateway.BillingCardRequest) error {
	f.record("add_billing_card:%s:%s", customerID, req.CardID)
	if f.addBillingCard != nil {
		return f.addBillingCard(customerID, req)
	}
	return nil
}

func (f *fakeAPI) DeleteBillingCard(ctx context.Context, customerID, cardID string) error {
	f.record("delete_billing_card:%s:%s", customerID, cardID)
	if f.deleteBillingCard != nil {
		return f.deleteBillingCard(customerID, cardID)
	}
	return nil
}

func (f *fakeAPI) GetBillingCards(ctx context.Context, customerID string) ([]gateway.BillingCardInfo, error) {
	f.record("get_billing_cards:%s", customerID)
	if f.getBillingCards != nil {
		return f.getBillingCards(customerID)
	}
	return nil, nil
}

func (f *fakeAPI) Authorize(ctx context.Context, req *gateway.TransactionRequest) (*gateway.PGResponse, error) {
	f.record("authorize:%s", req.CustomerID)
	if f.authorize != nil {
		return f.authorize(req)
	}
	return &gateway.PGResponse{PgID: "auth-1", RCode: gateway.RCodeSuccess}, nil
}

func (f *fakeAPI) Sale(ctx context.Context, req *gateway.TransactionRequest) (*gateway.PGResponse, error) {
	f.record("sale:%s", req.CustomerID)
	if f.sale != nil {
		return f.sale(req)
	}
	return &gateway.PGResponse{PgID: "sale-1", RCode: gateway.RCodeSuccess}, nil
}

func (f *fakeAPI) Capture(ctx context.Context, pgID string, amount decimal.Decimal) (*gateway.PGResponse, error) {
	f.record("capture:%s:%s", pgID, amount.StringFixed(2))
	if f.capture != nil {
		return f.capture(pgID, amount)
	}
	return &gateway.PGResponse{PgID: pgID, RCode: gateway.RCodeSuccess}, nil
}

func (f *fakeAPI) Refund(ctx context.Context, pgID string, amount decimal.Decimal) (*gateway.PGResponse, error) {
	f.record("refund:%s:%s", pgID, amount.StringFixed(2))
	if f.refund != nil {
		return f.refund(pgID, amount)
	}
	return &gateway.PGResponse{PgID: pgID, RCode: gateway.RCodeSuccess}, nil
}

func (f *fakeAPI) Void(ctx context.Context, pgID string) (*gateway.PGResponse, error) {
	f.record("void:%s", pgID)
	if f.void != nil {
		return f.void(pgID)
	}
	return &gateway.PGResponse{PgID: pgID, RCode: gateway.RCodeSuccess}, nil
}

func (f *fakeAPI) AddSubscription(ctx context.Context, req *gateway.SubscriptionRequest) (*gateway.Subscription, error) {
	f.record("add_subscription:%s", req.CustomerID)
	if f.addSubscription != nil {
		return f.addSubscription(req)
	}
	return &gateway.Subscription{
		SubscriptionID: "sub-1",
		CustomerID:     req.CustomerID,
		RecurAmt:       decimal.NewFromFloat(req.AmtTran),
		RecurDateStart: req.DateStart,
		Status:         "A",
	}, nil
}

func (f *fakeAPI) CancelSubscription(ctx context.Context, subscriptionID, customerID string) error {
	f.record("cancel_subscription:%s", subscriptionID)
	if f.cancelSubscription != nil {
		return f.cancelSubscription(subscriptionID, customerID)
	}
	return nil
}

func (f *fakeAPI) PauseSubscription(ctx context.Context, subscriptionID, customerID string) error {
	f.record("pause_subscription:%s", subscriptionID)
	if f.pauseSubscription != nil {
		return f.pauseSubscription(subscriptionID, customerID)
	}
	return nil
}

func (f *fakeAPI) ResumeSubscription(ctx context.Context, subscriptionID, customerID string) error {
	f.record("resume_subscription:%s", subscriptionID)
	if f.resumeSubscription != nil {
		return f.resumeSubscription(subscriptionID, customerID)
	}
	return nil
}

func (f *fakeAPI) GetMerchantSettings(ctx context.Context) (map[string]interface{}, error) {
	f.record("merchant_settings")
	if f.merchantSettings != nil {
		return f.merchantSettings()
	}
	return map[string]interface{}{"merchant_id": f.merchantID}, nil
}

func (f *fakeAPI) GetPlans(ctx context.Context) ([]gateway.Plan, error) {
	f.record("get_plans")
	if f.getPlans != nil {
		return f.getPlans()
	}
	return nil, nil
}

func (f *fakeAPI) GetTransientKey(ctx context.Context) (string, error) {
	f.record("transient_key")
	return "tk-123", nil
}

func (f *fakeAPI) AddWebhook(ctx context.Context, req *gateway.WebhookRequest) (*gateway.Webhook, error) {
	f.record("add_webhook:%s", req.WebhookNode)
	if f.addWebhook != nil {
		return f.addWebhook(req)
	}
	return &gateway.Webhook{WebhookID: "wh-new", SecurityKey: "secret-new", Status: gateway.WebhookStatusActive}, nil
}

func (f *fakeAPI) GetWebhook(ctx context.Context, webhookID string) (*gateway.Webhook, error) {
	f.record("get_webhook:%s", webhookID)
	if f.getWebhook != nil {
		return f.getWebhook(webhookID)
	}
	return &gateway.Webhook{WebhookID: gateway.ID(webhookID), Status: gateway.WebhookStatusActive}, nil
}

func (f *fakeAPI) DisableWebhook(ctx context.Context, webhookID string) error {
	f.record("disable_webhook:%s", webhookID)
	if f.disableWebhook != nil {
		return f.disableWebhook(webhookID)
	}
	return nil
}

func (f *fakeAPI) BrowseWebhooks(ctx context.Context, count int) ([]gateway.Webhook, error) {
	f.record("browse_webhooks:%d", count)
	if f.browseWebhooks != nil {
		return f.browseWebhooks(count)
	}
	return nil, nil
}

// fakeProvider 所有环境返回同一个 fakeAPI
type fakeProvider struct {
	api *fakeAPI
}

func (p *fakeProvider) API(mode string) (gateway.API, error) {
	if mode != config.ModeTest && mode != config.ModeLive {
		return nil, config.ErrUnknownMode
	}
	return p.api, nil
}

// 测试用的网关拒绝错误
func declined(op, code string) error {
	return &gateway.Error{Op: op, StatusCode: 200, Code: code, Message: gateway.DecodePaymentGatewayCode(code)}
}
