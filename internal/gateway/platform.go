package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// PlatformResponse platform 接口的统一外层结构
type PlatformResponse struct {
	Code       int             `json:"code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	TotalPages int             `json:"totalPages"`
	Page       int             `json:"page"`
}

// ============================================================
// 客户（vault）
// ============================================================

type BillingCardRequest struct {
	CardNumber       string `json:"card_number,omitempty"`
	CardID           string `json:"card_id"`
	BillingZip       string `json:"billing_zip"`
	Primary          bool   `json:"primary,omitempty"`
	BillingAddr1     string `json:"billing_addr1,omitempty"`
	BillingCity      string `json:"billing_city,omitempty"`
	BillingState     string `json:"billing_state,omitempty"`
	BillingCountry   string `json:"billing_country,omitempty"`
	BillingFirstName string `json:"billing_first_name,omitempty"`
	BillingLastName  string `json:"billing_last_name,omitempty"`
}

type ShippingAddress struct {
	FirstName string `json:"shipping_first_name,omitempty"`
	LastName  string `json:"shipping_last_name,omitempty"`
	Addr1     string `json:"shipping_addr1,omitempty"`
	City      string `json:"shipping_city,omitempty"`
	State     string `json:"shipping_state,omitempty"`
	Zip       string `json:"shipping_zip,omitempty"`
	Country   string `json:"shipping_country,omitempty"`
}

type AddCustomerRequest struct {
	CustomerID        string               `json:"customer_id"`
	FirstName         string               `json:"customer_first_name"`
	LastName          string               `json:"customer_last_name"`
	Email             string               `json:"customer_email,omitempty"`
	FirmName          string               `json:"customer_firm_name,omitempty"`
	Phone             string               `json:"customer_phone,omitempty"`
	BillingCards      []BillingCardRequest `json:"billing_cards,omitempty"`
	ShippingAddresses []ShippingAddress    `json:"shipping_addresses,omitempty"`
}

type Customer struct {
	CustomerID string `json:"customer_id"`
	FirstName  string `json:"customer_first_name"`
	LastName   string `json:"customer_last_name"`
	Email      string `json:"customer_email"`
}

type BillingCardInfo struct {
	CardID     string `json:"card_id"`
	CardNumber string `json:"card_number"`
	CardType   string `json:"card_type"`
	ExpDate    string `json:"exp_date"`
	BillingZip string `json:"billing_zip"`
	Primary    bool   `json:"primary"`
}

// AddCustomer 创建 vault 客户
// POST /platform/vault/customer
func (c *Client) AddCustomer(ctx context.Context, req *AddCustomerRequest) (*Customer, error) {
	params, err := toParams(req)
	if err != nil {
		return nil, fmt.Errorf("编码客户请求失败: %w", err)
	}
	var customer Customer
	if err := c.platformCall(ctx, "add_customer", http.MethodPost, "/platform/vault/customer", params, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// DeleteCustomer 删除 vault 客户
// DELETE /platform/vault/customer/{id}
func (c *Client) DeleteCustomer(ctx context.Context, customerID string) error {
	return c.platformCall(ctx, "delete_customer", http.MethodDelete, fmt.Sprintf("/platform/vault/customer/%s", customerID), nil, nil)
}

// AddBillingCard 给已有客户绑定卡
// POST /platform/vault/customer/{id}/billing
func (c *Client) AddBillingCard(ctx context.Context, customerID string, req *BillingCardRequest) error {
	params, err := toParams(req)
	if err != nil {
		return fmt.Errorf("编码绑卡请求失败: %w", err)
	}
	return c.platformCall(ctx, "add_billing_card", http.MethodPost, fmt.Sprintf("/platform/vault/customer/%s/billing", customerID), params, nil)
}

// DeleteBillingCard 解绑卡
// PUT /platform/vault/customer/{id}/billing/delete
func (c *Client) DeleteBillingCard(ctx context.Context, customerID, cardID string) error {
	return c.platformCall(ctx, "delete_billing_card", http.MethodPut, fmt.Sprintf("/platform/vault/customer/%s/billing/delete", customerID), map[string]interface{}{
		"card_id": cardID,
	}, nil)
}

// GetBillingCards 查询客户已绑定的卡
// GET /platform/vault/customer/{id}/billing?merchant_id=
func (c *Client) GetBillingCards(ctx context.Context, customerID string) ([]BillingCardInfo, error) {
	var data struct {
		BillingCards []BillingCardInfo `json:"billing_cards"`
	}
	if err := c.platformCall(ctx, "get_billing_cards", http.MethodGet, fmt.Sprintf("/platform/vault/customer/%s/billing", customerID), map[string]interface{}{
		"merchant_id": c.merchantID,
	}, &data); err != nil {
		return nil, err
	}
	return data.BillingCards, nil
}

// ============================================================
// 订阅
// ============================================================

type SubscriptionRequest struct {
	CustomerID        string  `json:"customer_id"`
	DateStart         string  `json:"date_start"`
	PlanCode          string  `json:"plan_code,omitempty"`
	PlanDesc          string  `json:"plan_desc,omitempty"`
	PlanFrequency     *int    `json:"plan_frequency,omitempty"`
	Interval          int     `json:"interval,omitempty"`
	PlanDuration      int     `json:"plan_duration,omitempty"`
	CancelOnSetupFail *bool   `json:"cancel_on_setup_fail,omitempty"`
	AmtTran           float64 `json:"amt_tran,omitempty"`
	AmtSetup          float64 `json:"amt_setup,omitempty"`
	AvsZip            string  `json:"avs_zip,omitempty"`
	ProfileID         string  `json:"profile_id,omitempty"`
}

// SetupResponse 订阅附带的首付费用扣款结果
type SetupResponse struct {
	Status string `json:"status"`
	PgID   string `json:"pg_id"`
	RCode  string `json:"rcode"`
	RMsg   string `json:"rmsg"`
}

type Subscription struct {
	SubscriptionID ID              `json:"subscription_id"`
	CustomerID     string          `json:"customer_id"`
	PlanCode       string          `json:"plan_code"`
	RecurAmt       decimal.Decimal `json:"recur_amt"`
	RecurDateStart string          `json:"recur_date_start"`
	AmtSetup       decimal.Decimal `json:"amt_setup"`
	Status         string          `json:"status"`
	Response       *SetupResponse  `json:"response,omitempty"`
}

const SetupStatusApproved = "Approved"

// AddSubscription 创建订阅
// POST /platform/subscription
func (c *Client) AddSubscription(ctx context.Context, req *SubscriptionRequest) (*Subscription, error) {
	params, err := toParams(req)
	if err != nil {
		return nil, fmt.Errorf("编码订阅请求失败: %w", err)
	}
	var sub Subscription
	if err := c.platformCall(ctx, "add_subscription", http.MethodPost, "/platform/subscription", params, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelSubscription POST /platform/subscription/{id}/cancel
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID, customerID string) error {
	return c.subscriptionAction(ctx, "cancel", subscriptionID, customerID)
}

// PauseSubscription POST /platform/subscription/{id}/pause
func (c *Client) PauseSubscription(ctx context.Context, subscriptionID, customerID string) error {
	return c.subscriptionAction(ctx, "pause", subscriptionID, customerID)
}

// ResumeSubscription POST /platform/subscription/{id}/resume
func (c *Client) ResumeSubscription(ctx context.Context, subscriptionID, customerID string) error {
	return c.subscriptionAction(ctx, "resume", subscriptionID, customerID)
}

func (c *Client) subscriptionAction(ctx context.Context, action, subscriptionID, customerID string) error {
	return c.platformCall(ctx, action+"_subscription", http.MethodPost,
		fmt.Sprintf("/platform/subscription/%s/%s", subscriptionID, action),
		map[string]interface{}{"customer_id": customerID}, nil)
}

// ============================================================
// 商户设置 / 计划 / 嵌入式表单
// ============================================================

type Plan struct {
	PlanID        ID              `json:"plan_id"`
	PlanCode      string          `json:"plan_code"`
	PlanName      string          `json:"plan_name"`
	PlanDesc      string          `json:"plan_desc"`
	PlanFrequency int             `json:"plan_frequency"`
	Interval      int             `json:"interval"`
	PlanDuration  int             `json:"plan_duration"`
	AmtTran       decimal.Decimal `json:"amt_tran"`
	AmtSetup      decimal.Decimal `json:"amt_setup"`
	Status        string          `json:"status"`
}

// GetMerchantSettings GET /platform/vendor/settings/{mid}
func (c *Client) GetMerchantSettings(ctx context.Context) (map[string]interface{}, error) {
	data := map[string]interface{}{}
	if err := c.platformCall(ctx, "merchant_settings", http.MethodGet, fmt.Sprintf("/platform/vendor/settings/%s", c.merchantID), nil, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &Error{Op: "merchant_settings", Message: "merchant settings not found"}
	}
	return data, nil
}

// GetPlans 查询所有有效计划，按 totalPages 逐页合并
// GET /platform/plan?filter=status,IS,E
func (c *Client) GetPlans(ctx context.Context) ([]Plan, error) {
	first, err := c.platformPage(ctx, 0)
	if err != nil {
		return nil, err
	}
	var plans []Plan
	if err := decodeData(first.Data, &plans); err != nil {
		return nil, &Error{Op: "get_plans", Message: GenericErrorMessage}
	}

	for page := 1; page < first.TotalPages; page++ {
		next, err := c.platformPage(ctx, page)
		if err != nil {
			// 单页失败不影响已获取的数据
			continue
		}
		var more []Plan
		if err := decodeData(next.Data, &more); err == nil {
			plans = append(plans, more...)
		}
	}
	return plans, nil
}

func (c *Client) platformPage(ctx context.Context, page int) (*PlatformResponse, error) {
	params := map[string]interface{}{"filter": "status,IS,E"}
	if page > 0 {
		params["page"] = page
	}
	result := c.Send(ctx, http.MethodGet, "/platform/plan", params)
	return decodePlatform("get_plans", result)
}

// GetTransientKey 获取嵌入式卡片组件使用的临时 key
// GET /platform/embedded
func (c *Client) GetTransientKey(ctx context.Context) (string, error) {
	var data struct {
		TransientKey string `json:"transient_key"`
	}
	if err := c.platformCall(ctx, "transient_key", http.MethodGet, "/platform/embedded", nil, &data); err != nil {
		return "", err
	}
	return data.TransientKey, nil
}

// ============================================================
// Webhook
// ============================================================

type WebhookRequest struct {
	Label           string   `json:"label"`
	NotificationURL string   `json:"notification_url"`
	WebhookNode     string   `json:"webhook_node,omitempty"`
	EmailAddress    []string `json:"email_address,omitempty"`
	Events          []string `json:"events,omitempty"`
}

type Webhook struct {
	WebhookID       ID       `json:"webhook_id"`
	Label           string   `json:"label"`
	NotificationURL string   `json:"notification_url"`
	SecurityKey     string   `json:"security_key"`
	Secret          string   `json:"secret"`
	Status          string   `json:"status"`
	Events          []string `json:"events"`
}

// SigningSecret 不同版本接口返回字段名不一致
func (w *Webhook) SigningSecret() string {
	if w.SecurityKey != "" {
		return w.SecurityKey
	}
	return w.Secret
}

const WebhookStatusActive = "ACTIVE"

// AddWebhook POST /platform/webhook
func (c *Client) AddWebhook(ctx context.Context, req *WebhookRequest) (*Webhook, error) {
	params, err := toParams(req)
	if err != nil {
		return nil, fmt.Errorf("编码 webhook 请求失败: %w", err)
	}
	var hook Webhook
	if err := c.platformCall(ctx, "add_webhook", http.MethodPost, "/platform/webhook", params, &hook); err != nil {
		return nil, err
	}
	return &hook, nil
}

// GetWebhook GET /platform/webhook/{id}
func (c *Client) GetWebhook(ctx context.Context, webhookID string) (*Webhook, error) {
	var hook Webhook
	if err := c.platformCall(ctx, "get_webhook", http.MethodGet, fmt.Sprintf("/platform/webhook/%s", webhookID), nil, &hook); err != nil {
		return nil, err
	}
	return &hook, nil
}

// DisableWebhook PUT /platform/webhook/{id}/disable
func (c *Client) DisableWebhook(ctx context.Context, webhookID string) error {
	return c.platformCall(ctx, "disable_webhook", http.MethodPut, fmt.Sprintf("/platform/webhook/%s/disable", webhookID), nil, nil)
}

// BrowseWebhooks GET /platform/webhook
// count=1 的调用也用来校验 api_key 是否有效
func (c *Client) BrowseWebhooks(ctx context.Context, count int) ([]Webhook, error) {
	var hooks []Webhook
	if err := c.platformCall(ctx, "browse_webhooks", http.MethodGet, "/platform/webhook", map[string]interface{}{
		"count": count,
	}, &hooks); err != nil {
		return nil, err
	}
	return hooks, nil
}

func (c *Client) platformCall(ctx context.Context, op, method, path string, params map[string]interface{}, out interface{}) error {
	result := c.Send(ctx, method, path, params)
	resp, err := decodePlatform(op, result)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := decodeData(resp.Data, out); err != nil {
		return &Error{Op: op, StatusCode: result.StatusCode, Message: GenericErrorMessage}
	}
	return nil
}

func decodePlatform(op string, result *Result) (*PlatformResponse, error) {
	if result.Err != nil && result.StatusCode == 0 {
		return nil, &Error{Op: op, Transport: true, Message: result.Err.Error()}
	}

	var resp PlatformResponse
	decodeErr := result.Decode(&resp)

	if !result.Success {
		gwErr := &Error{Op: op, StatusCode: result.StatusCode, Message: GenericErrorMessage}
		if decodeErr == nil && resp.Code != PlatformSuccess {
			gwErr.Code = fmt.Sprint(resp.Code)
			gwErr.Message = DecodePlatformCode(resp.Code)
		}
		return nil, gwErr
	}
	if decodeErr != nil {
		// 200 但响应体为空的调用（如 DELETE）按成功处理
		if len(result.Body) == 0 {
			return &PlatformResponse{}, nil
		}
		return nil, &Error{Op: op, StatusCode: result.StatusCode, Message: GenericErrorMessage}
	}
	if resp.Code != PlatformSuccess {
		return nil, &Error{Op: op, StatusCode: result.StatusCode, Code: fmt.Sprint(resp.Code), Message: DecodePlatformCode(resp.Code)}
	}
	return &resp, nil
}

func decodeData(data json.RawMessage, out interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, out)
}
