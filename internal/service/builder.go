package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"formpay/internal/gateway"
	"formpay/internal/model"

	"github.com/shopspring/decimal"
)

const (
	productCodeMaxLen = 12
	descriptionMaxLen = 26
	purchaseIDMaxLen  = 25

	unitOfMeasureEach = "each"
	debitIndicator    = "D"

	isoDate = "2006-01-02"
)

// Builder 根据 feed、表单和提交内容组装网关请求
type Builder struct {
	now func() time.Time
}

func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

// ============================================================
// 订单金额与明细
// ============================================================

// OrderData 计算金额、首付费用和明细
//
// TransactionFields 中的产品字段（或 form_total）计入金额；
// 首付费用产品单独计算 单价×数量，不进入明细
func (b *Builder) OrderData(sc *SubmissionContext) {
	var fields []string
	setupFeeProduct := ""
	switch cfg := sc.Config.(type) {
	case model.OneTimeFeedConfig:
		fields = cfg.TransactionFields
	case model.SubscriptionOneOffConfig:
		fields = cfg.TransactionFields
		setupFeeProduct = cfg.SetupFeeProduct
	default:
		return
	}

	included := func(fieldID string) bool {
		for _, f := range fields {
			if f == fieldID || f == model.FormTotalField {
				return true
			}
		}
		return false
	}

	amount := decimal.Zero
	setupFee := decimal.Zero
	items := make([]gateway.LineItem, 0)

	for _, product := range sc.Entry.Products.Data() {
		quantity := product.Quantity
		if quantity.IsZero() {
			quantity = decimal.NewFromInt(1)
		}

		if setupFeeProduct != "" && product.FieldID == setupFeeProduct {
			setupFee = product.Price.Mul(quantity)
		}

		if !included(product.FieldID) {
			continue
		}

		price := product.Price
		options := make([]string, 0, len(product.Options))
		for _, opt := range product.Options {
			options = append(options, opt.Name)
			price = price.Add(opt.Price)
		}
		amount = amount.Add(price.Mul(quantity))

		if price.IsNegative() {
			continue
		}
		description := product.Name
		if len(options) > 0 {
			description = fmt.Sprintf("%s options: %s", product.Name, strings.Join(options, ", "))
		}
		items = append(items, gateway.LineItem{
			ProductCode:    truncate(fmt.Sprintf("%d_%s_%s", sc.Form.ID, product.FieldID, strings.ReplaceAll(product.Name, " ", "_")), productCodeMaxLen),
			Description:    truncate(description, descriptionMaxLen),
			Quantity:       quantity.InexactFloat64(),
			UnitCost:       price.Round(2).InexactFloat64(),
			UnitOfMeasure:  unitOfMeasureEach,
			DebitCreditInd: debitIndicator,
		})
	}

	if shipping := sc.Entry.Shipping.Data(); shipping != nil && shipping.FieldID != "" && included(shipping.FieldID) {
		items = append(items, gateway.LineItem{
			ProductCode:    truncate(shipping.FieldID+shipping.Name, productCodeMaxLen),
			Description:    truncate(shipping.Name, descriptionMaxLen),
			Quantity:       1,
			UnitCost:       shipping.Price.Round(2).InexactFloat64(),
			UnitOfMeasure:  unitOfMeasureEach,
			DebitCreditInd: debitIndicator,
		})
		amount = amount.Add(shipping.Price)
	}

	sc.PaymentAmount = amount
	sc.SetupFee = setupFee
	sc.LineItems = items
}

// ============================================================
// 订阅开始日期
// ============================================================

// StartDate 网关不接受今天或更早的开始日期
// 未填写、无法解析、不晚于今天（UTC）时一律取明天
func (b *Builder) StartDate(submitted, dateFormat string) string {
	today := b.now().UTC()
	tomorrow := today.AddDate(0, 0, 1).Format(isoDate)

	submitted = strings.TrimSpace(submitted)
	if submitted == "" {
		return tomorrow
	}
	formatted, err := formatDate(submitted, dateFormat)
	if err != nil {
		return tomorrow
	}
	if formatted <= today.Format(isoDate) {
		return tomorrow
	}
	return formatted
}

// formatDate 按日期字段格式（mdy / dmy / ymd，分隔符 / - .）转成 YYYY-MM-DD
func formatDate(value, dateFormat string) (string, error) {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
	if len(parts) != 3 {
		return "", fmt.Errorf("日期格式不正确: %q", value)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return "", fmt.Errorf("日期格式不正确: %q", value)
		}
		nums[i] = n
	}

	var year, month, day int
	switch dateFormat {
	case model.DateFormatDMY:
		day, month, year = nums[0], nums[1], nums[2]
	case model.DateFormatYMD:
		year, month, day = nums[0], nums[1], nums[2]
	default:
		month, day, year = nums[0], nums[1], nums[2]
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", fmt.Errorf("日期不存在: %q", value)
	}
	return t.Format(isoDate), nil
}

// ============================================================
// 请求组装
// ============================================================

// Build 在客户、卡解析完成后组装本 feed 的网关请求
func (b *Builder) Build(sc *SubmissionContext) error {
	meta := sc.meta()

	switch cfg := sc.Config.(type) {
	case model.OneTimeFeedConfig:
		lineItems, err := json.Marshal(sc.LineItems)
		if err != nil {
			return fmt.Errorf("序列化明细失败: %w", err)
		}
		purchaseID := sc.Fields.Value(FieldPurchaseID)
		if purchaseID == "" {
			purchaseID = sc.Form.Title
		}
		req := &gateway.TransactionRequest{
			AmtTran:        sc.PaymentAmount.Round(2).InexactFloat64(),
			AvsZip:         AvsZip(sc.Fields),
			CustomerID:     sc.CustomerID,
			LineItems:      string(lineItems),
			MerchantRefNum: "",
			ProfileID:      cfg.PaymentProfile,
			PurchaseID:     truncate(purchaseID, purchaseIDMaxLen),
			ReportData:     reportData(cfg.ReportData, sc.Entry),
			CardholderName: cardholderName(sc),
		}
		if sc.Card != nil {
			req.CardID = sc.Card.ID
		}
		if cfg.EmailReceipt {
			req.EmailReceipt = true
			req.CustomerEmail = sc.CustomerEmail
		}
		sc.Transaction = req

	case model.SubscriptionExistingPlanConfig:
		sc.Subscription = &gateway.SubscriptionRequest{
			CustomerID: sc.CustomerID,
			DateStart:  b.StartDate(sc.Fields.Value(FieldStartDate), startDateFormat(sc.Form, meta)),
			PlanCode:   ExistingPlanCode(cfg, sc.Entry),
		}

	case model.SubscriptionOneOffConfig:
		description := cfg.Description
		if description == "" {
			description = sc.Fields.Value(FieldPlanDesc)
		}
		frequency := cfg.Frequency
		cancelOnSetupFail := cfg.CancelOnSetupFail
		req := &gateway.SubscriptionRequest{
			CustomerID:        sc.CustomerID,
			DateStart:         b.StartDate(sc.Fields.Value(FieldStartDate), startDateFormat(sc.Form, meta)),
			PlanDesc:          description,
			PlanFrequency:     &frequency,
			PlanDuration:      cfg.Duration,
			CancelOnSetupFail: &cancelOnSetupFail,
			AmtTran:           sc.PaymentAmount.Round(2).InexactFloat64(),
			AvsZip:            AvsZip(sc.Fields),
			ProfileID:         cfg.PaymentProfile,
		}
		if frequency == model.FrequencyMonthly {
			req.Interval = cfg.Interval
		}
		if sc.SetupFee.IsPositive() {
			req.AmtSetup = sc.SetupFee.Round(2).InexactFloat64()
		}
		sc.Subscription = req

	default:
		return fmt.Errorf("%w: feed %d", model.ErrInvalidFeedConfig, sc.Feed.ID)
	}
	return nil
}

// AvsZip 账单邮编优先，其次收货邮编，都没有时用占位值
func AvsZip(fields FieldMapper) string {
	if zip := fields.Value(addressBilling + "_zip"); zip != "" {
		return zip
	}
	if zip := fields.Value(addressShipping + "_zip"); zip != "" {
		return zip
	}
	return ZipPlaceholder
}

// ExistingPlanCode 计划编码可直接配置，也可来自产品字段的值
// 字段值形如 "name|code|:amount" 或 "code|price"
func ExistingPlanCode(cfg model.SubscriptionExistingPlanConfig, entry *model.Entry) string {
	if cfg.PlanCode != "" {
		return cfg.PlanCode
	}
	value := entry.Value(cfg.PlanField)
	parts := strings.Split(value, "|")
	if len(parts) >= 3 {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(parts[0])
}

func cardholderName(sc *SubmissionContext) string {
	if sc.Card != nil && sc.Card.IsBusinessACH() {
		if firm := sc.Fields.Value(FieldCustomerFirmName); firm != "" {
			return firm
		}
	}
	return strings.TrimSpace(sc.Fields.Value(FieldCustomerFirstName) + " " + sc.Fields.Value(FieldCustomerLastName))
}

func reportData(mapping map[string]string, entry *model.Entry) map[string]string {
	if len(mapping) == 0 {
		return nil
	}
	data := make(map[string]string, len(mapping))
	for key, fieldID := range mapping {
		if v := strings.TrimSpace(entry.Value(fieldID)); v != "" {
			data[key] = v
		}
	}
	if len(data) == 0 {
		return nil
	}
	return data
}

func startDateFormat(form *model.Form, meta model.FeedMeta) string {
	fieldID := meta.FieldMap[FieldStartDate]
	if fieldID == "" {
		return model.DateFormatMDY
	}
	if field := form.Field(fieldID); field != nil && field.DateFormat != "" {
		return field.DateFormat
	}
	return model.DateFormatMDY
}
