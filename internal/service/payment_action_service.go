package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"formpay/internal/config"
	"formpay/internal/gateway"
	"formpay/internal/infrastructure/lock"
	"formpay/internal/model"
	"formpay/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 后台操作
const (
	PaymentActionVoid    = "void"
	PaymentActionCapture = "capture"
	PaymentActionRefund  = "refund"
	PaymentActionPause   = "pause"
	PaymentActionResume  = "resume"
	PaymentActionCancel  = "cancel"
)

// paymentActionRule 每个操作要求的原始交易类型和目标状态
type paymentActionRule struct {
	requiredActions []string
	targetStatus    string
	event           string
}

func (r paymentActionRule) allows(action string) bool {
	for _, a := range r.requiredActions {
		if a == action {
			return true
		}
	}
	return false
}

// 已扣款的预授权同样可以退款，未扣款的由状态表拦截
var paymentActionRules = map[string]paymentActionRule{
	PaymentActionVoid:    {[]string{model.ActionAuthorize}, model.PaymentStatusVoided, model.EventPaymentVoided},
	PaymentActionCapture: {[]string{model.ActionAuthorize}, model.PaymentStatusPaid, model.EventPaymentCaptured},
	PaymentActionRefund:  {[]string{model.ActionCapture, model.ActionAuthorize}, model.PaymentStatusRefunded, model.EventPaymentRefunded},
	PaymentActionPause:   {[]string{model.ActionSubscribe}, model.PaymentStatusPaused, model.EventSubscriptionPaused},
	PaymentActionResume:  {[]string{model.ActionSubscribe}, model.PaymentStatusActive, model.EventSubscriptionResumed},
	PaymentActionCancel:  {[]string{model.ActionSubscribe}, model.PaymentStatusCancelled, model.EventSubscriptionCancelled},
}

type PaymentActionService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	gateways        gateway.Provider
	entryRepo       *repository.EntryRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewPaymentActionService(db *gorm.DB, redisClient *redis.Client, gateways gateway.Provider, cfg *config.Config) *PaymentActionService {
	return &PaymentActionService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		gateways:        gateways,
		entryRepo:       repository.NewEntryRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type PaymentActionRequest struct {
	RequestID     string `json:"request_id"`
	FeedID        int64  `json:"feed_id" binding:"required"`
	Action        string `json:"action" binding:"required,oneof=void capture refund pause resume cancel"`
	TransactionID string `json:"transaction_id"`
}

type PaymentActionResponse struct {
	EntryID       int64  `json:"entry_id"`
	FeedID        int64  `json:"feed_id"`
	Action        string `json:"action"`
	PaymentStatus string `json:"payment_status"`
}

// Execute 对已保存的交易执行 void / capture / refund / pause / resume / cancel
// 同一提交记录上的操作通过 redis 锁串行执行
func (s *PaymentActionService) Execute(ctx context.Context, entryID int64, req *PaymentActionRequest) (*PaymentActionResponse, error) {
	rule, ok := paymentActionRules[req.Action]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActionNotAllowed, req.Action)
	}

	entry, err := s.entryRepo.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.PaymentMode == "" {
		return nil, ErrNoPaymentMode
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	actionLock := lock.NewEntryActionLock(s.redisClient, entryID, req.RequestID,
		time.Duration(s.cfg.Business.ActionLockSeconds)*time.Second)
	locked, err := actionLock.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取操作锁失败: %w", err)
	}
	if !locked {
		holder, _ := actionLock.Holder(ctx)
		log.Printf("[PaymentAction] 操作进行中: entry=%d, action=%s, holder=%s", entryID, req.Action, holder)
		return nil, ErrActionInProgress
	}
	defer func() {
		if err := actionLock.Unlock(ctx); err != nil {
			log.Printf("[PaymentAction] 释放锁失败: entry=%d, err=%v", entryID, err)
		}
	}()

	// 加锁后再读交易，避免使用过期的状态
	record, err := s.transactionRepo.GetByEntryAndFeed(ctx, entryID, req.FeedID)
	if err != nil {
		return nil, err
	}
	if !rule.allows(record.Action) {
		return nil, fmt.Errorf("%w: %s 不能用于 %s 交易", ErrActionNotAllowed, req.Action, record.Action)
	}
	if !model.CanTransitionTo(record.PaymentStatus, rule.targetStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrStatusInvalid, record.PaymentStatus, rule.targetStatus)
	}
	targetID := record.TransactionID
	if record.Action == model.ActionSubscribe {
		targetID = record.SubscriptionID
	}
	if req.TransactionID != "" && req.TransactionID != targetID {
		return nil, fmt.Errorf("%w: transaction_id 不匹配", ErrActionNotAllowed)
	}

	api, err := s.gateways.API(entry.PaymentMode)
	if err != nil {
		return nil, err
	}
	if err := s.callGateway(ctx, api, req.Action, record); err != nil {
		log.Printf("[PaymentAction] 网关操作失败: entry=%d, feed=%d, action=%s, err=%v", entryID, req.FeedID, req.Action, err)
		return nil, fmt.Errorf("%w: %s", ErrGatewayFailed, decodeError(req.Action, err))
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.transactionRepo.UpdateStatus(ctx, tx, record.ID, rule.targetStatus); err != nil {
			return fmt.Errorf("更新交易状态失败: %w", err)
		}

		fields, note := entryChangesForAction(req.Action, record, entry.Currency, now)
		if len(fields) > 0 {
			if err := s.entryRepo.UpdateFields(ctx, tx, entryID, fields); err != nil {
				return fmt.Errorf("更新提交记录失败: %w", err)
			}
		}
		if note != "" {
			if err := s.entryRepo.AddNote(ctx, tx, entryID, model.NoteTypeSuccess, note); err != nil {
				return fmt.Errorf("写入备注失败: %w", err)
			}
		}

		return s.outboxRepo.CreatePaymentEvent(ctx, tx, s.cfg.Kafka.Topic.PaymentEvent, &model.PaymentEvent{
			Event:          rule.event,
			EntryID:        entryID,
			FeedID:         record.FeedID,
			Mode:           entry.PaymentMode,
			TransactionID:  record.TransactionID,
			SubscriptionID: record.SubscriptionID,
			CustomerID:     record.CustomerID,
			Amount:         record.Amount,
			PaymentStatus:  rule.targetStatus,
			OccurredAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[PaymentAction] 操作成功: entry=%d, feed=%d, action=%s, status=%s", entryID, req.FeedID, req.Action, rule.targetStatus)

	return &PaymentActionResponse{
		EntryID:       entryID,
		FeedID:        record.FeedID,
		Action:        req.Action,
		PaymentStatus: rule.targetStatus,
	}, nil
}

func (s *PaymentActionService) callGateway(ctx context.Context, api gateway.API, action string, record *model.TransactionRecord) error {
	switch action {
	case PaymentActionVoid:
		_, err := api.Void(ctx, record.TransactionID)
		return err
	case PaymentActionCapture:
		_, err := api.Capture(ctx, record.TransactionID, record.Amount)
		return err
	case PaymentActionRefund:
		_, err := api.Refund(ctx, record.TransactionID, record.Amount)
		return err
	case PaymentActionPause:
		return api.PauseSubscription(ctx, record.SubscriptionID, record.CustomerID)
	case PaymentActionResume:
		return api.ResumeSubscription(ctx, record.SubscriptionID, record.CustomerID)
	case PaymentActionCancel:
		return api.CancelSubscription(ctx, record.SubscriptionID, record.CustomerID)
	}
	return errors.New("unknown action")
}

// entryChangesForAction 操作成功后提交记录需要更新的字段和备注
func entryChangesForAction(action string, record *model.TransactionRecord, currency string, now time.Time) (map[string]interface{}, string) {
	amount := formatAmount(record.Amount, currency)

	switch action {
	case PaymentActionVoid:
		return map[string]interface{}{"payment_status": model.PaymentStatusVoided},
			fmt.Sprintf("Authorization has been voided. Transaction Id: %s.", record.TransactionID)
	case PaymentActionCapture:
		return map[string]interface{}{
				"payment_status":   model.PaymentStatusPaid,
				"payment_amount":   record.Amount,
				"payment_date":     now,
				"payment_method":   record.PaymentMethod,
				"transaction_id":   record.TransactionID,
				"transaction_type": model.EntryTransactionTypePayment,
			},
			fmt.Sprintf("Payment has been completed. Amount: %s. Transaction Id: %s.", amount, record.TransactionID)
	case PaymentActionRefund:
		return map[string]interface{}{"payment_status": model.PaymentStatusRefunded},
			fmt.Sprintf("Payment has been refunded. Amount: %s. Transaction Id: %s.", amount, record.TransactionID)
	case PaymentActionPause:
		return nil, fmt.Sprintf("Subscription %s paused.", record.SubscriptionID)
	case PaymentActionResume:
		return nil, fmt.Sprintf("Subscription %s resumed.", record.SubscriptionID)
	case PaymentActionCancel:
		return map[string]interface{}{"payment_status": model.PaymentStatusCancelled},
			fmt.Sprintf("Subscription has been cancelled. Subscription Id: %s.", record.SubscriptionID)
	}
	return nil, ""
}
