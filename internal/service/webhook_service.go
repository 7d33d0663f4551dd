package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"formpay/internal/config"
	"formpay/internal/gateway"
	"formpay/internal/model"
	"formpay/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// webhook 事件对应的处理类型
const (
	WebhookTypeSuspend     = "suspend_subscription"
	WebhookTypeComplete    = "complete_subscription"
	WebhookTypeAddPayment  = "add_subscription_payment"
	WebhookTypeFailPayment = "fail_subscription_payment"
)

// WebhookPayload 网关回调请求体
type WebhookPayload struct {
	Event     string      `json:"event"`
	IsTest    bool        `json:"is_test"`
	WebhookID string      `json:"webhook_id"`
	Data      WebhookData `json:"data"`
}

type WebhookData struct {
	SubscriptionID gateway.ID      `json:"subscription_id"`
	Status         string          `json:"status"`
	RecurAmt       decimal.Decimal `json:"recur_amt"`
}

func (p *WebhookPayload) Mode() string {
	if p.IsTest {
		return config.ModeTest
	}
	return config.ModeLive
}

// WebhookAction 解析后的回调动作
// AbortCallback=true 表示不认识的事件，不做任何查询和状态变更
type WebhookAction struct {
	ID             string          `json:"id"`
	Event          string          `json:"event"`
	Mode           string          `json:"mode"`
	Type           string          `json:"type,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	EntryID        int64           `json:"entry_id,omitempty"`
	FeedID         int64           `json:"feed_id,omitempty"`
	PaymentStatus  string          `json:"payment_status,omitempty"`
	Note           string          `json:"note,omitempty"`
	AbortCallback  bool            `json:"abort_callback,omitempty"`
}

// SubscriptionLookup 按环境和订阅 id 查找交易记录，找不到返回 nil, nil
// 签名只证明回调来自 payload 声明的环境，查找不能跨环境
type SubscriptionLookup interface {
	GetBySubscriptionID(ctx context.Context, mode, subscriptionID string) (*model.TransactionRecord, error)
}

// WebhookInterpreter 把回调事件映射成对已保存交易的状态变更
type WebhookInterpreter struct {
	lookup SubscriptionLookup
}

func NewWebhookInterpreter(lookup SubscriptionLookup) *WebhookInterpreter {
	return &WebhookInterpreter{lookup: lookup}
}

// Interpret 返回 nil, nil 表示订阅不存在
func (i *WebhookInterpreter) Interpret(ctx context.Context, payload *WebhookPayload) (*WebhookAction, error) {
	action := &WebhookAction{
		ID:    payload.WebhookID,
		Event: payload.Event,
		Mode:  payload.Mode(),
	}

	switch payload.Event {
	case model.WebhookEventSubscriptionSuspended:
		action.Type = WebhookTypeSuspend
		action.PaymentStatus = statusFromCode(payload.Data.Status, model.PaymentStatusSuspended)
	case model.WebhookEventSubscriptionComplete:
		action.Type = WebhookTypeComplete
		action.PaymentStatus = statusFromCode(payload.Data.Status, model.PaymentStatusComplete)
	case model.WebhookEventSubscriptionPaymentSuccess:
		action.Type = WebhookTypeAddPayment
		action.Amount = payload.Data.RecurAmt
		action.PaymentStatus = model.PaymentStatusActive
	case model.WebhookEventSubscriptionPaymentFailure:
		action.Type = WebhookTypeFailPayment
		action.Amount = payload.Data.RecurAmt
		action.PaymentStatus = model.PaymentStatusFailed
	default:
		action.AbortCallback = true
		return action, nil
	}

	subscriptionID := payload.Data.SubscriptionID.String()
	if subscriptionID == "" {
		return nil, fmt.Errorf("%w: 缺少 subscription_id", ErrInvalidPayload)
	}
	action.SubscriptionID = subscriptionID

	record, err := i.lookup.GetBySubscriptionID(ctx, action.Mode, subscriptionID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	action.EntryID = record.EntryID
	action.FeedID = record.FeedID
	return action, nil
}

func statusFromCode(code, fallback string) string {
	if status := gateway.SubscriptionStatus(code); status != "" {
		return status
	}
	return fallback
}

// WebhookService 处理网关回调：验签、记录投递日志、应用状态变更
type WebhookService struct {
	db              *gorm.DB
	cfg             *config.Config
	interpreter     *WebhookInterpreter
	entryRepo       *repository.EntryRepository
	transactionRepo *repository.TransactionRepository
	eventRepo       *repository.WebhookEventRepository
	outboxRepo      *repository.OutboxRepository
}

func NewWebhookService(db *gorm.DB, cfg *config.Config) *WebhookService {
	transactionRepo := repository.NewTransactionRepository(db)
	return &WebhookService{
		db:              db,
		cfg:             cfg,
		interpreter:     NewWebhookInterpreter(transactionRepo),
		entryRepo:       repository.NewEntryRepository(db),
		transactionRepo: transactionRepo,
		eventRepo:       repository.NewWebhookEventRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// HandleCallback 处理一次回调
//
// 签名不通过返回 ErrInvalidSignature，不做任何状态变更；
// 不认识的事件或找不到订阅时正常返回，调用方应回复 200 避免网关重试
func (s *WebhookService) HandleCallback(ctx context.Context, body []byte, signature string) (*WebhookAction, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.logDelivery(ctx, &model.WebhookEvent{Payload: string(body)})
		log.Printf("[Webhook] 请求体解析失败: err=%v", err)
		return nil, ErrInvalidPayload
	}

	mode := payload.Mode()
	secret := ""
	if env, err := s.cfg.Gateway.Env(mode); err == nil {
		secret = env.WebhookSecret
	}
	valid := gateway.VerifySignature(body, signature, secret)

	delivery := &model.WebhookEvent{
		WebhookID:      payload.WebhookID,
		Event:          payload.Event,
		Mode:           mode,
		SubscriptionID: payload.Data.SubscriptionID.String(),
		Payload:        string(body),
		SignatureValid: valid,
	}
	s.logDelivery(ctx, delivery)

	if !valid {
		log.Printf("[Webhook] 签名校验失败: webhook=%s, event=%s, mode=%s", payload.WebhookID, payload.Event, mode)
		return nil, ErrInvalidSignature
	}

	action, err := s.interpreter.Interpret(ctx, &payload)
	if err != nil {
		s.markProcessed(ctx, delivery, err.Error())
		return nil, err
	}
	if action == nil {
		log.Printf("[Webhook] 未找到订阅: subscription=%s", delivery.SubscriptionID)
		s.markProcessed(ctx, delivery, "subscription not found")
		return nil, nil
	}
	if action.AbortCallback {
		log.Printf("[Webhook] 忽略未知事件: event=%s", payload.Event)
		s.markProcessed(ctx, delivery, "")
		return action, nil
	}

	if err := s.apply(ctx, action); err != nil {
		log.Printf("[Webhook] 应用回调失败: subscription=%s, err=%v", action.SubscriptionID, err)
		s.markProcessed(ctx, delivery, err.Error())
		return nil, err
	}

	s.markProcessed(ctx, delivery, "")
	log.Printf("[Webhook] 处理成功: event=%s, entry=%d, feed=%d, status=%s", action.Event, action.EntryID, action.FeedID, action.PaymentStatus)
	return action, nil
}

// apply 在一个事务内更新交易状态、写备注和支付事件
func (s *WebhookService) apply(ctx context.Context, action *WebhookAction) error {
	entry, err := s.entryRepo.Get(ctx, action.EntryID)
	if err != nil {
		return err
	}
	record, err := s.transactionRepo.GetByEntryAndFeed(ctx, action.EntryID, action.FeedID)
	if err != nil {
		return err
	}

	amount := formatAmount(action.Amount, entry.Currency)
	var (
		event    string
		noteType = model.NoteTypeSuccess
	)
	switch action.Type {
	case WebhookTypeSuspend:
		event = model.EventSubscriptionSuspended
		action.Note = fmt.Sprintf("Subscription has been suspended. Subscriber Id: %s", action.SubscriptionID)
	case WebhookTypeComplete:
		event = model.EventSubscriptionCompleted
		action.Note = fmt.Sprintf("Subscription has been completed. Subscriber Id: %s", action.SubscriptionID)
	case WebhookTypeAddPayment:
		event = model.EventSubscriptionPaid
		action.Note = fmt.Sprintf("Subscription has been paid. Amount: %s. Subscription Id: %s", amount, action.SubscriptionID)
	case WebhookTypeFailPayment:
		event = model.EventSubscriptionPayFailed
		noteType = model.NoteTypeError
		action.Note = fmt.Sprintf("Subscription payment has failed. Amount: %s. Subscription Id: %s", amount, action.SubscriptionID)
	default:
		return errors.New("unknown webhook type")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.transactionRepo.UpdateStatus(ctx, tx, record.ID, action.PaymentStatus); err != nil {
			return err
		}
		if action.Type == WebhookTypeAddPayment || action.Type == WebhookTypeFailPayment {
			if err := s.entryRepo.UpdateFields(ctx, tx, entry.ID, map[string]interface{}{
				"payment_status": action.PaymentStatus,
			}); err != nil {
				return err
			}
		}
		if err := s.entryRepo.AddNote(ctx, tx, entry.ID, noteType, action.Note); err != nil {
			return err
		}
		return s.outboxRepo.CreatePaymentEvent(ctx, tx, s.cfg.Kafka.Topic.PaymentEvent, &model.PaymentEvent{
			Event:          event,
			EntryID:        entry.ID,
			FeedID:         record.FeedID,
			Mode:           action.Mode,
			SubscriptionID: action.SubscriptionID,
			CustomerID:     record.CustomerID,
			Amount:         action.Amount,
			PaymentStatus:  action.PaymentStatus,
			OccurredAt:     time.Now(),
		})
	})
}

// 投递日志写失败不影响回调处理
func (s *WebhookService) logDelivery(ctx context.Context, delivery *model.WebhookEvent) {
	if err := s.eventRepo.Create(ctx, delivery); err != nil {
		log.Printf("[Webhook] 写入投递日志失败: %v", err)
	}
}

func (s *WebhookService) markProcessed(ctx context.Context, delivery *model.WebhookEvent, processingErr string) {
	if delivery.ID == 0 {
		return
	}
	if err := s.eventRepo.MarkProcessed(ctx, delivery.ID, processingErr); err != nil {
		log.Printf("[Webhook] 更新投递日志失败: id=%d, err=%v", delivery.ID, err)
	}
}
