package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"formpay/internal/gateway"
	"formpay/internal/model"

	"gorm.io/datatypes"
)

// ============================================================================
// 交易编排
// ============================================================================
//
// 按配置顺序逐个执行 feed：
//
//   计算订单 -> 解析客户 -> 解析卡 -> 组装请求 -> authorize / sale / subscribe
//
// 任一 feed 失败时，已成功的 feed 按执行的逆序冲正
// （authorize->void，capture->refund，subscribe->cancel），
// 本次提交新建的客户随后删除，然后以一个 ValidationError 返回给提交者。
// 冲正在返回之前同步完成，提交者不会看到部分成功的状态。
//
// ============================================================================

type Orchestrator struct {
	gateways  gateway.Provider
	customers *CustomerResolver
	cards     *CardResolver
	builder   *Builder
}

func NewOrchestrator(gateways gateway.Provider, customers *CustomerResolver, cards *CardResolver, builder *Builder) *Orchestrator {
	return &Orchestrator{
		gateways:  gateways,
		customers: customers,
		cards:     cards,
		builder:   builder,
	}
}

// Process 执行一次提交的全部 feed
func (o *Orchestrator) Process(ctx context.Context, form *model.Form, entry *model.Entry, feeds []*model.Feed, input *SubmissionInput) (*Outcome, error) {
	if len(feeds) == 0 {
		return &Outcome{}, nil
	}

	mode := feeds[0].Mode
	configs := make([]model.FeedConfig, len(feeds))
	for i, feed := range feeds {
		if feed.Mode != mode {
			return nil, &ValidationError{FeedID: feed.ID, Message: ErrMixedMode.Error(), Err: ErrMixedMode}
		}
		cfg, err := feed.ResolveConfig()
		if err != nil {
			return nil, &ValidationError{FeedID: feed.ID, Message: gateway.GenericErrorMessage, Err: err}
		}
		configs[i] = cfg
	}

	api, err := o.gateways.API(mode)
	if err != nil {
		return nil, fmt.Errorf("获取网关客户端失败: %w", err)
	}

	outcome := &Outcome{Mode: mode, MerchantID: api.MerchantID()}
	st := &submissionState{input: input}

	for i, feed := range feeds {
		sc := newSubmissionContext(feed, configs[i], form, entry, mode, outcome.MerchantID)

		o.builder.OrderData(sc)
		if !sc.PaymentAmount.IsPositive() && !feed.IsExistingPlan() {
			log.Printf("[Orchestrator] 金额为 0，跳过 feed: form=%d, feed=%d", form.ID, feed.ID)
			continue
		}

		if err := o.prepare(ctx, api, sc, st); err != nil {
			o.rollback(ctx, api, st.executed, sc)
			return nil, err
		}
		st.previous = sc

		record := o.execute(ctx, api, sc)
		if !record.IsSuccess {
			log.Printf("[Orchestrator] feed 执行失败，开始冲正: form=%d, feed=%d, action=%s, err=%s",
				form.ID, feed.ID, record.Action, record.ErrorMessage)
			o.rollback(ctx, api, st.executed, sc)
			return nil, &ValidationError{FeedID: feed.ID, Message: record.ErrorMessage, Err: ErrGatewayFailed}
		}

		result := &FeedResult{Context: sc, Record: record}
		st.executed = append(st.executed, result)
		outcome.Results = append(outcome.Results, result)
	}

	return outcome, nil
}

// prepare 解析客户和卡并组装请求，缺少前置条件时不调用网关
func (o *Orchestrator) prepare(ctx context.Context, api gateway.API, sc *SubmissionContext, st *submissionState) error {
	if err := o.customers.Resolve(ctx, api, sc, st); err != nil {
		return &ValidationError{FeedID: sc.Feed.ID, Message: gateway.GenericErrorMessage, Err: err}
	}
	if sc.CustomerID == "" {
		return &ValidationError{FeedID: sc.Feed.ID, Message: ErrInsufficientData.Error(), Err: ErrInsufficientData}
	}

	if err := o.cards.Resolve(ctx, api, sc, st, sc.CustomerID); err != nil {
		return &ValidationError{FeedID: sc.Feed.ID, Message: gateway.GenericErrorMessage, Err: err}
	}
	if sc.Card == nil && sc.Config.PaymentType() == model.PaymentTypeOneTime {
		return &ValidationError{FeedID: sc.Feed.ID, Message: ErrInsufficientData.Error(), Err: ErrInsufficientData}
	}

	if err := o.builder.Build(sc); err != nil {
		return &ValidationError{FeedID: sc.Feed.ID, Message: gateway.GenericErrorMessage, Err: err}
	}
	return nil
}

// execute 调用网关并生成交易记录，失败时记录解码后的错误信息
func (o *Orchestrator) execute(ctx context.Context, api gateway.API, sc *SubmissionContext) *model.TransactionRecord {
	record := &model.TransactionRecord{
		FeedID:     sc.Feed.ID,
		Mode:       sc.Mode,
		CustomerID: sc.CustomerID,
	}

	switch cfg := sc.Config.(type) {
	case model.OneTimeFeedConfig:
		var (
			resp *gateway.PGResponse
			err  error
		)
		if cfg.TransactionType == model.TransactionTypeAuthorization {
			record.Action = model.ActionAuthorize
			resp, err = api.Authorize(ctx, sc.Transaction)
		} else {
			record.Action = model.ActionCapture
			resp, err = api.Sale(ctx, sc.Transaction)
		}
		if err != nil {
			record.ErrorMessage = decodeError(record.Action, err)
			return record
		}

		record.IsSuccess = true
		record.TransactionID = resp.PgID
		record.Amount = sc.PaymentAmount
		if sc.Card != nil {
			record.PaymentMethod = sc.Card.Type
		}
		if record.Action == model.ActionAuthorize {
			record.PaymentStatus = model.PaymentStatusAuthorized
		} else {
			record.PaymentStatus = model.PaymentStatusPaid
			record.CapturedPayment = capturedPayment(&model.CapturedPayment{
				IsSuccess:     true,
				TransactionID: resp.PgID,
				Amount:        sc.PaymentAmount,
				PaymentMethod: record.PaymentMethod,
			})
		}

	case model.SubscriptionExistingPlanConfig, model.SubscriptionOneOffConfig:
		record.Action = model.ActionSubscribe
		sub, err := api.AddSubscription(ctx, sc.Subscription)
		if err != nil {
			record.ErrorMessage = decodeError(record.Action, err)
			return record
		}

		record.IsSuccess = true
		record.SubscriptionID = sub.SubscriptionID.String()
		record.Amount = sub.RecurAmt
		record.SubscriptionStartDate = sub.RecurDateStart
		if sub.CustomerID != "" {
			record.CustomerID = sub.CustomerID
		}
		record.PaymentStatus = model.PaymentStatusActive

		if sc.SetupFee.IsPositive() {
			setup := &model.CapturedPayment{Name: "Setup Fee"}
			if sub.Response != nil && sub.Response.Status == gateway.SetupStatusApproved {
				setup.IsSuccess = true
				setup.TransactionID = sub.Response.PgID
				setup.Amount = sub.AmtSetup
			} else if sub.Response != nil {
				setup.ErrorMessage = sub.Response.RMsg
			}
			record.CapturedPayment = capturedPayment(setup)
		}
	}

	return record
}

// rollback 逆序冲正已成功的 feed，并删除本次提交新建的客户
// 冲正失败只记录日志，不影响返回给提交者的错误
func (o *Orchestrator) rollback(ctx context.Context, api gateway.API, executed []*FeedResult, failed *SubmissionContext) {
	log.Printf("[Orchestrator] 校验失败，冲正 %d 笔交易", len(executed))

	if failed != nil && failed.AddNewCustomer {
		o.deleteCustomer(ctx, api, failed.CustomerID)
	}

	for i := len(executed) - 1; i >= 0; i-- {
		record := executed[i].Record

		var err error
		switch record.Action {
		case model.ActionAuthorize:
			_, err = api.Void(ctx, record.TransactionID)
		case model.ActionCapture:
			_, err = api.Refund(ctx, record.TransactionID, record.Amount)
		case model.ActionSubscribe:
			err = api.CancelSubscription(ctx, record.SubscriptionID, record.CustomerID)
		}
		if err != nil {
			log.Printf("[Orchestrator] 冲正失败: feed=%d, op=%s, err=%v", record.FeedID, model.InverseAction(record.Action), err)
		} else {
			log.Printf("[Orchestrator] 冲正成功: feed=%d, op=%s", record.FeedID, model.InverseAction(record.Action))
		}

		if executed[i].Context.AddNewCustomer {
			o.deleteCustomer(ctx, api, executed[i].Context.CustomerID)
		}
	}
}

func (o *Orchestrator) deleteCustomer(ctx context.Context, api gateway.API, customerID string) {
	if customerID == "" {
		return
	}
	if err := api.DeleteCustomer(ctx, customerID); err != nil {
		log.Printf("[Orchestrator] 删除客户失败: customerID=%s, err=%v", customerID, err)
	}
}

// decodeError 网关错误转成给提交者看的文案；网络异常单独记录
func decodeError(action string, err error) string {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		if gwErr.Transport {
			log.Printf("[Orchestrator] 网关网络异常: action=%s, err=%v", action, err)
			return gateway.GenericErrorMessage
		}
		log.Printf("[Orchestrator] 网关拒绝: action=%s, code=%s, message=%s", action, gwErr.Code, gwErr.Message)
		if gwErr.Message != "" {
			return gwErr.Message
		}
	} else {
		log.Printf("[Orchestrator] 网关调用失败: action=%s, err=%v", action, err)
	}
	return gateway.GenericErrorMessage
}

func capturedPayment(p *model.CapturedPayment) datatypes.JSONType[*model.CapturedPayment] {
	return datatypes.NewJSONType(p)
}
