package service

import (
	"context"
	"fmt"
	"log"

	"formpay/internal/gateway"
	"formpay/internal/model"
)

// CardStore 用户保存的卡，按环境和商户隔离
type CardStore interface {
	GetCard(ctx context.Context, userID int64, mode, merchantID, cardID string) (*model.BillingCard, error)
}

// CardResolver 确定本次提交使用的卡
type CardResolver struct {
	store CardStore
}

func NewCardResolver(store CardStore) *CardResolver {
	return &CardResolver{store: store}
}

// Resolve 解析卡
//
// customerID 非空时，新卡会通过绑卡接口注册到该客户；绑卡失败则卡为空。
// customerID 为空表示客户尚未创建，卡信息随创建客户请求一起提交
func (r *CardResolver) Resolve(ctx context.Context, api gateway.API, sc *SubmissionContext, st *submissionState, customerID string) error {
	if sc.Card != nil {
		return nil
	}

	if st.previous != nil && st.previous.Card != nil {
		card := *st.previous.Card
		sc.Card = &card
		return nil
	}

	payment := st.input.Payment
	if !payment.IsNewCard() {
		if st.input.UserID == nil {
			log.Printf("[CardResolver] 匿名提交不能使用已保存的卡: feed=%d", sc.Feed.ID)
			return nil
		}
		saved, err := r.store.GetCard(ctx, *st.input.UserID, sc.Mode, sc.MerchantID, payment.Method)
		if err != nil {
			return fmt.Errorf("查询已保存的卡失败: %w", err)
		}
		if saved == nil {
			log.Printf("[CardResolver] 已保存的卡不存在: userID=%d, mode=%s, cardID=%s", *st.input.UserID, sc.Mode, payment.Method)
			return nil
		}
		sc.Card = &Card{
			ID:         saved.CardID,
			CardNumber: saved.CardNumber,
			Last4:      saved.Last4,
			Type:       saved.CardType,
			TypeID:     saved.TypeID,
			BillingZip: saved.BillingZip,
			Default:    saved.IsDefault,
		}
		return nil
	}

	card := r.newCardInfo(sc, st)
	sc.AddNewCard = true
	if card.ID == "" {
		log.Printf("[CardResolver] 缺少卡 token: feed=%d", sc.Feed.ID)
		return nil
	}

	if customerID == "" {
		sc.Card = card
		return nil
	}

	zip := card.BillingZip
	if zip == "" {
		zip = ZipPlaceholder
	}
	err := api.AddBillingCard(ctx, customerID, &gateway.BillingCardRequest{
		CardID:           card.ID,
		BillingZip:       zip,
		BillingFirstName: sc.Fields.Value(FieldCustomerFirstName),
		BillingLastName:  sc.Fields.Value(FieldCustomerLastName),
	})
	if err != nil {
		log.Printf("[CardResolver] 绑卡失败: customerID=%s, err=%v", customerID, err)
		return nil
	}
	sc.Card = card
	return nil
}

func (r *CardResolver) newCardInfo(sc *SubmissionContext, st *submissionState) *Card {
	payment := st.input.Payment
	card := &Card{
		ID:         payment.Token,
		CardNumber: payment.CardNumber,
		Type:       payment.CardType,
		TypeID:     payment.TypeID,
		Default:    true,
	}
	if n := len(payment.CardNumber); n >= 4 {
		card.Last4 = payment.CardNumber[n-4:]
	}

	if sc.meta().UsePreviousFeedCustomerInfo && st.customerID != "" {
		for i := len(st.executed) - 1; i >= 0; i-- {
			if prev := st.executed[i].Context.Billing; prev.Zip != "" {
				sc.Billing = prev
				break
			}
		}
	}
	if sc.Billing.Zip == "" {
		sc.Billing = sc.address(addressBilling)
	}
	card.BillingZip = sc.Billing.Zip
	return card
}
