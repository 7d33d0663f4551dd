package service

import (
	"strings"

	"formpay/internal/gateway"
	"formpay/internal/model"

	"github.com/shopspring/decimal"
)

// 表单字段映射的逻辑名
const (
	FieldCustomerEmail     = "customer_info_email"
	FieldCustomerFirstName = "customer_info_first_name"
	FieldCustomerLastName  = "customer_info_last_name"
	FieldCustomerFirmName  = "customer_info_firm_name"
	FieldCustomerPhone     = "customer_info_phone"

	FieldPurchaseID = "purchase_id"
	FieldPlanDesc   = "plan_desc"
	FieldStartDate  = "start_date"

	addressBilling  = "billing"
	addressShipping = "shipping"

	// ZipPlaceholder 账单、收货邮编都未映射时使用
	ZipPlaceholder = "11111"

	// PaymentMethodCreditCard 提交时选择新卡
	PaymentMethodCreditCard = "creditcard"
)

// FieldMapper 把逻辑字段名解析为提交的原始值
type FieldMapper interface {
	Value(name string) string
}

type feedFieldMapper struct {
	fieldMap map[string]string
	values   map[string]string
}

// NewFieldMapper 按 feed 的 field_map 读取提交记录的字段
func NewFieldMapper(meta model.FeedMeta, entry *model.Entry) FieldMapper {
	return feedFieldMapper{
		fieldMap: meta.FieldMap,
		values:   entry.Values.Data(),
	}
}

func (m feedFieldMapper) Value(name string) string {
	fieldID, ok := m.fieldMap[name]
	if !ok || fieldID == "" {
		return ""
	}
	return strings.TrimSpace(m.values[fieldID])
}

// PaymentInput 嵌入式卡片组件回传的支付信息
type PaymentInput struct {
	// Method 为空或 creditcard 表示新卡，否则为已保存卡的 card_id
	Method     string `json:"method"`
	Token      string `json:"token"`
	CardNumber string `json:"card_number"`
	CardType   string `json:"card_type"`
	TypeID     string `json:"type_id"`
}

func (p PaymentInput) IsNewCard() bool {
	return p.Method == "" || p.Method == PaymentMethodCreditCard
}

// SubmissionInput 一次表单提交
type SubmissionInput struct {
	FormID    int64
	UserID    *int64
	UserEmail string
	Values    map[string]string
	Products  []model.ProductLine
	Shipping  *model.ShippingLine
	Payment   PaymentInput
}

type Address struct {
	Addr1   string
	City    string
	State   string
	Zip     string
	Country string
}

func (a Address) IsEmpty() bool {
	return a == Address{}
}

// Card 本次提交使用的支付工具
type Card struct {
	ID         string
	CardNumber string
	Last4      string
	Type       string
	TypeID     string
	BillingZip string
	Default    bool
}

func (c *Card) IsBusinessACH() bool {
	return c.Type == model.CardTypeACH && (c.TypeID == model.ACHTypeBusinessChecking || c.TypeID == model.ACHTypeBusinessSavings)
}

// SubmissionContext 单个 feed 在一次提交中的处理上下文
// 依次经过订单计算、客户解析、卡解析、请求组装，结果快照进交易记录
type SubmissionContext struct {
	Feed       *model.Feed
	Config     model.FeedConfig
	Form       *model.Form
	Entry      *model.Entry
	Fields     FieldMapper
	Mode       string
	MerchantID string

	CustomerID    string
	CustomerEmail string
	FirstName     string
	LastName      string
	FirmName      string
	Phone         string
	Billing       Address
	Shipping      Address

	Card           *Card
	AddNewCustomer bool
	AddNewCard     bool

	PaymentAmount decimal.Decimal
	SetupFee      decimal.Decimal
	LineItems     []gateway.LineItem

	Transaction  *gateway.TransactionRequest
	Subscription *gateway.SubscriptionRequest
}

func newSubmissionContext(feed *model.Feed, cfg model.FeedConfig, form *model.Form, entry *model.Entry, mode, merchantID string) *SubmissionContext {
	return &SubmissionContext{
		Feed:       feed,
		Config:     cfg,
		Form:       form,
		Entry:      entry,
		Fields:     NewFieldMapper(feed.Meta.Data(), entry),
		Mode:       mode,
		MerchantID: merchantID,
	}
}

func (sc *SubmissionContext) meta() model.FeedMeta {
	return sc.Feed.Meta.Data()
}

func (sc *SubmissionContext) address(kind string) Address {
	return Address{
		Addr1:   sc.Fields.Value(kind + "_addr1"),
		City:    sc.Fields.Value(kind + "_city"),
		State:   sc.Fields.Value(kind + "_state"),
		Zip:     sc.Fields.Value(kind + "_zip"),
		Country: sc.Fields.Value(kind + "_country"),
	}
}

// submissionState 一次提交内跨 feed 共享的状态，随请求创建、随请求丢弃
type submissionState struct {
	input *SubmissionInput

	// customerID 本次提交最近一次解析出的客户 ID
	customerID string
	previous   *SubmissionContext
	executed   []*FeedResult
}

// FeedResult 单个 feed 的执行结果
type FeedResult struct {
	Context *SubmissionContext
	Record  *model.TransactionRecord
}

// Outcome 整次提交的编排结果，交给 PostProcessor 落库
type Outcome struct {
	Mode       string
	MerchantID string
	Results    []*FeedResult
}

func (o *Outcome) HasPayments() bool {
	return o != nil && len(o.Results) > 0
}

// truncate 按字符截断，避免切坏多字节字符
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
