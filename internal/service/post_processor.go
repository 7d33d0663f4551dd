package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"formpay/internal/config"
	"formpay/internal/model"
	"formpay/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// PostProcessor 提交记录落库后保存编排结果
//
// 只写入编排阶段已经确定的结果，不会再调用网关。
// 交易记录、提交记录的支付字段、备注和支付事件在同一个事务内写入；
// 用户、客户 ID、卡的关联失败只记日志，不回滚已完成的支付
type PostProcessor struct {
	db              *gorm.DB
	cfg             *config.Config
	entryRepo       *repository.EntryRepository
	transactionRepo *repository.TransactionRepository
	customerRepo    *repository.CustomerRepository
	userRepo        *repository.UserRepository
	outboxRepo      *repository.OutboxRepository
	now             func() time.Time
}

func NewPostProcessor(db *gorm.DB, cfg *config.Config) *PostProcessor {
	return &PostProcessor{
		db:              db,
		cfg:             cfg,
		entryRepo:       repository.NewEntryRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		customerRepo:    repository.NewCustomerRepository(db),
		userRepo:        repository.NewUserRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		now:             time.Now,
	}
}

type entryNote struct {
	noteType string
	content  string
}

func (p *PostProcessor) Process(ctx context.Context, entry *model.Entry, outcome *Outcome, input *SubmissionInput) error {
	if !outcome.HasPayments() {
		return nil
	}
	now := p.now()

	err := p.db.Transaction(func(tx *gorm.DB) error {
		entry.PaymentGateway = model.PaymentGatewaySlug
		entry.PaymentMode = outcome.Mode

		for _, result := range outcome.Results {
			record := result.Record
			record.EntryID = entry.ID

			notes := applyToEntry(entry, record, now)

			if err := p.transactionRepo.Create(ctx, tx, record); err != nil {
				return fmt.Errorf("保存交易记录失败: feed=%d: %w", record.FeedID, err)
			}
			for _, note := range notes {
				if err := p.entryRepo.AddNote(ctx, tx, entry.ID, note.noteType, note.content); err != nil {
					return fmt.Errorf("写入备注失败: %w", err)
				}
			}
			event := &model.PaymentEvent{
				Event:          eventForAction(record.Action),
				EntryID:        entry.ID,
				FeedID:         record.FeedID,
				Mode:           record.Mode,
				TransactionID:  record.TransactionID,
				SubscriptionID: record.SubscriptionID,
				CustomerID:     record.CustomerID,
				Amount:         record.Amount,
				PaymentStatus:  record.PaymentStatus,
				OccurredAt:     now,
			}
			if err := p.outboxRepo.CreatePaymentEvent(ctx, tx, p.cfg.Kafka.Topic.PaymentEvent, event); err != nil {
				return fmt.Errorf("写入消息失败: %w", err)
			}
		}

		return p.entryRepo.UpdateTx(ctx, tx, entry)
	})
	if err != nil {
		return err
	}

	log.Printf("[PostProcessor] 交易结果已保存: entry=%d, feeds=%d, mode=%s", entry.ID, len(outcome.Results), outcome.Mode)

	p.associateUser(ctx, entry, outcome, input)
	return nil
}

// applyToEntry 把交易结果合并到提交记录的支付字段，多个 feed 时以最后一个为准
func applyToEntry(entry *model.Entry, record *model.TransactionRecord, now time.Time) []entryNote {
	amount := formatAmount(record.Amount, entry.Currency)

	switch record.Action {
	case model.ActionAuthorize:
		entry.PaymentStatus = model.PaymentStatusAuthorized
		entry.PaymentAmount = record.Amount
		entry.TransactionID = record.TransactionID
		entry.TransactionType = model.EntryTransactionTypePayment
		entry.PaymentMethod = record.PaymentMethod
		return []entryNote{{model.NoteTypeSuccess, fmt.Sprintf("Payment has been authorized. Amount: %s. Transaction Id: %s.", amount, record.TransactionID)}}

	case model.ActionCapture:
		entry.PaymentStatus = model.PaymentStatusPaid
		entry.PaymentAmount = record.Amount
		entry.PaymentDate = &now
		entry.TransactionID = record.TransactionID
		entry.TransactionType = model.EntryTransactionTypePayment
		entry.PaymentMethod = record.PaymentMethod
		return []entryNote{{model.NoteTypeSuccess, fmt.Sprintf("Payment has been completed. Amount: %s. Transaction Id: %s.", amount, record.TransactionID)}}

	case model.ActionSubscribe:
		entry.PaymentStatus = model.PaymentStatusActive
		entry.PaymentAmount = record.Amount
		paymentDate := now
		if start, err := time.Parse(isoDate, record.SubscriptionStartDate); err == nil {
			paymentDate = start
		}
		entry.PaymentDate = &paymentDate
		entry.TransactionID = record.SubscriptionID
		entry.TransactionType = model.EntryTransactionTypeSubscription
		entry.IsFulfilled = true

		notes := []entryNote{{model.NoteTypeSuccess, fmt.Sprintf("Subscription has been created. Subscription Id: %s.", record.SubscriptionID)}}
		if setup := record.CapturedPayment.Data(); setup != nil {
			if setup.IsSuccess {
				notes = append(notes, entryNote{model.NoteTypeSuccess, fmt.Sprintf("Setup fee has been paid. Amount: %s. Transaction Id: %s.",
					formatAmount(setup.Amount, entry.Currency), setup.TransactionID)})
			} else {
				notes = append(notes, entryNote{model.NoteTypeError, fmt.Sprintf("Setup fee payment failed. %s", setup.ErrorMessage)})
			}
		}
		return notes
	}
	return nil
}

// ============================================================
// 用户 / 客户 ID / 卡 关联
// ============================================================

func (p *PostProcessor) associateUser(ctx context.Context, entry *model.Entry, outcome *Outcome, input *SubmissionInput) {
	var userID int64
	if input.UserID != nil {
		userID = *input.UserID
	} else {
		first := outcome.Results[0].Context
		if first.CustomerEmail == "" {
			log.Printf("[PostProcessor] 匿名提交缺少邮箱，不创建用户: entry=%d", entry.ID)
			return
		}
		user, err := p.ensureUser(ctx, first.FirstName, first.LastName, first.CustomerEmail)
		if err != nil {
			log.Printf("[PostProcessor] 创建用户失败（不影响支付）: entry=%d, err=%v", entry.ID, err)
			return
		}
		userID = user.ID
		if err := p.entryRepo.UpdateFields(ctx, nil, entry.ID, map[string]interface{}{"created_by": userID}); err != nil {
			log.Printf("[PostProcessor] 更新提交人失败: entry=%d, err=%v", entry.ID, err)
		} else {
			entry.CreatedBy = &userID
		}
	}

	for _, result := range outcome.Results {
		if err := p.saveCustomerInfo(ctx, userID, outcome, result.Context); err != nil {
			log.Printf("[PostProcessor] 保存客户信息失败（不影响支付）: user=%d, feed=%d, err=%v", userID, result.Context.Feed.ID, err)
		}
	}
}

// ensureUser 登录名为邮箱；已存在则直接复用
func (p *PostProcessor) ensureUser(ctx context.Context, firstName, lastName, email string) (*model.User, error) {
	existing, err := p.userRepo.GetByLogin(ctx, nil, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("生成密码失败: %w", err)
	}
	user := &model.User{
		Login:        email,
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         p.cfg.Business.CustomerRole,
		PasswordHash: string(hash),
	}
	if err := p.userRepo.Create(ctx, nil, user); err != nil {
		// 并发提交时登录名可能刚被占用
		if again, getErr := p.userRepo.GetByLogin(ctx, nil, email); getErr == nil {
			return again, nil
		}
		return nil, err
	}
	log.Printf("[PostProcessor] 新建用户: id=%d, login=%s, role=%s", user.ID, user.Login, user.Role)
	return user, nil
}

func (p *PostProcessor) saveCustomerInfo(ctx context.Context, userID int64, outcome *Outcome, sc *SubmissionContext) error {
	if sc.CustomerID != "" {
		err := p.customerRepo.SaveCustomerIDIfAbsent(ctx, nil, &model.CustomerIdentity{
			UserID:     userID,
			MerchantID: outcome.MerchantID,
			Mode:       outcome.Mode,
			CustomerID: sc.CustomerID,
		})
		if err != nil {
			return fmt.Errorf("保存客户 ID 失败: %w", err)
		}
	}

	if !sc.AddNewCard || sc.Card == nil {
		return nil
	}
	saved, err := p.customerRepo.GetCard(ctx, userID, outcome.Mode, outcome.MerchantID, sc.Card.ID)
	if err != nil {
		return err
	}
	if saved != nil {
		return nil
	}
	return p.customerRepo.SaveCard(ctx, nil, &model.BillingCard{
		UserID:     userID,
		CardID:     sc.Card.ID,
		CardNumber: sc.Card.CardNumber,
		Last4:      sc.Card.Last4,
		CardType:   sc.Card.Type,
		TypeID:     sc.Card.TypeID,
		BillingZip: sc.Card.BillingZip,
		Mode:       outcome.Mode,
		MerchantID: outcome.MerchantID,
		IsDefault:  sc.Card.Default,
	})
}

func eventForAction(action string) string {
	switch action {
	case model.ActionAuthorize:
		return model.EventPaymentAuthorized
	case model.ActionCapture:
		return model.EventPaymentCaptured
	default:
		return model.EventSubscriptionStarted
	}
}

func formatAmount(amount decimal.Decimal, currency string) string {
	if currency == "" {
		return amount.StringFixed(2)
	}
	return amount.StringFixed(2) + " " + currency
}
