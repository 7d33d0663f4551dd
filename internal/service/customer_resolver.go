package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"math/big"
	"strings"
	"unicode"

	"formpay/internal/gateway"
)

const (
	nameCodeMaxLen      = 27
	customerSuffixLen   = 4
	customerIDAlphabet  = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	customerEmailMaxLen = 64
	defaultCustomerCode = "CUSTOMER"
)

// CustomerStore 已保存的客户 ID 查询
type CustomerStore interface {
	GetCustomerID(ctx context.Context, userID int64, merchantID, mode string) (string, error)
}

// CustomerResolver 确定本次提交的网关客户
//
// 顺序：已登录用户保存的客户 ID -> 同一提交中上一个 feed 的客户 -> 新建客户。
// 新建失败时客户 ID 留空，由编排器按“数据不足”处理
type CustomerResolver struct {
	store  CustomerStore
	cards  *CardResolver
	random io.Reader
}

func NewCustomerResolver(store CustomerStore, cards *CardResolver) *CustomerResolver {
	return &CustomerResolver{store: store, cards: cards, random: rand.Reader}
}

func (r *CustomerResolver) Resolve(ctx context.Context, api gateway.API, sc *SubmissionContext, st *submissionState) error {
	sc.FirstName = sc.Fields.Value(FieldCustomerFirstName)
	sc.LastName = sc.Fields.Value(FieldCustomerLastName)

	if st.input.UserID != nil {
		customerID, err := r.store.GetCustomerID(ctx, *st.input.UserID, sc.MerchantID, sc.Mode)
		if err != nil {
			return fmt.Errorf("查询客户 ID 失败: %w", err)
		}
		if customerID != "" {
			sc.CustomerID = customerID
			sc.CustomerEmail = st.input.UserEmail
			st.customerID = customerID
			return nil
		}
	}

	if sc.meta().UsePreviousFeedCustomerInfo && st.customerID != "" {
		sc.CustomerID = st.customerID
		r.copyFromPrevious(sc, st)
		return nil
	}

	sc.CustomerEmail = sc.Fields.Value(FieldCustomerEmail)
	sc.FirmName = sc.Fields.Value(FieldCustomerFirmName)
	sc.Phone = sc.Fields.Value(FieldCustomerPhone)
	sc.Shipping = sc.address(addressShipping)

	if sc.CustomerEmail == "" && sc.FirstName == "" && sc.LastName == "" {
		log.Printf("[CustomerResolver] 没有可用的客户信息: feed=%d", sc.Feed.ID)
		return nil
	}

	// 新客户的卡随创建请求一起绑定，不单独调用绑卡接口
	if err := r.cards.Resolve(ctx, api, sc, st, ""); err != nil {
		return err
	}
	if sc.Card == nil {
		return nil
	}

	if sc.Billing.Zip == "" {
		if sc.Shipping.Zip != "" {
			sc.Billing.Zip = sc.Shipping.Zip
		} else {
			sc.Billing.Zip = ZipPlaceholder
		}
	}

	card := gateway.BillingCardRequest{
		CardNumber:       sc.Card.CardNumber,
		CardID:           sc.Card.ID,
		BillingZip:       sc.Billing.Zip,
		Primary:          true,
		BillingFirstName: sc.FirstName,
		BillingLastName:  sc.LastName,
	}
	if sc.Billing.Addr1 != "" {
		card.BillingAddr1 = sc.Billing.Addr1
		card.BillingCity = sc.Billing.City
		card.BillingState = sc.Billing.State
		card.BillingCountry = sc.Billing.Country
	}

	req := &gateway.AddCustomerRequest{
		CustomerID:   r.generateCustomerID(NameCode(sc.FirstName, sc.LastName)),
		FirstName:    sc.FirstName,
		LastName:     sc.LastName,
		Email:        truncate(sc.CustomerEmail, customerEmailMaxLen),
		FirmName:     sc.FirmName,
		Phone:        sc.Phone,
		BillingCards: []gateway.BillingCardRequest{card},
	}
	if !sc.Shipping.IsEmpty() {
		req.ShippingAddresses = []gateway.ShippingAddress{{
			FirstName: sc.FirstName,
			LastName:  sc.LastName,
			Addr1:     sc.Shipping.Addr1,
			City:      sc.Shipping.City,
			State:     sc.Shipping.State,
			Zip:       sc.Shipping.Zip,
			Country:   sc.Shipping.Country,
		}}
	}

	customer, err := api.AddCustomer(ctx, req)
	if err != nil {
		log.Printf("[CustomerResolver] 创建客户失败: feed=%d, customerID=%s, err=%v", sc.Feed.ID, req.CustomerID, err)
		return nil
	}

	customerID := customer.CustomerID
	if customerID == "" {
		customerID = req.CustomerID
	}
	sc.CustomerID = customerID
	sc.AddNewCustomer = true
	st.customerID = customerID
	log.Printf("[CustomerResolver] 新建客户: feed=%d, customerID=%s, mode=%s", sc.Feed.ID, customerID, sc.Mode)
	return nil
}

// copyFromPrevious 沿用前一个 feed 的客户时，联系信息和收货地址一并带过来
func (r *CustomerResolver) copyFromPrevious(sc *SubmissionContext, st *submissionState) {
	prev := st.previous
	if prev == nil {
		return
	}
	sc.CustomerEmail = prev.CustomerEmail
	sc.FirmName = prev.FirmName
	sc.Phone = prev.Phone
	for i := len(st.executed) - 1; i >= 0; i-- {
		if zip := st.executed[i].Context.Shipping.Zip; zip != "" {
			sc.Shipping = st.executed[i].Context.Shipping
			return
		}
	}
	sc.Shipping = prev.Shipping
}

// NameCode 大写姓名去掉非字母数字字符，最多 27 位
func NameCode(firstName, lastName string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(firstName + lastName) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return truncate(b.String(), nameCodeMaxLen)
}

// generateCustomerID NAMECODE_ 加 4 位随机字符，避免同名客户冲突
func (r *CustomerResolver) generateCustomerID(nameCode string) string {
	if nameCode == "" {
		nameCode = defaultCustomerCode
	}
	return nameCode + "_" + randomString(r.random, customerSuffixLen)
}

func randomString(random io.Reader, n int) string {
	limit := big.NewInt(int64(len(customerIDAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(random, limit)
		if err != nil {
			// 随机源不可用时退回系统随机源
			idx, _ = rand.Int(rand.Reader, limit)
		}
		buf[i] = customerIDAlphabet[idx.Int64()]
	}
	return string(buf)
}
