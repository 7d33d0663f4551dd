package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"formpay/internal/config"
	"formpay/internal/gateway"
	"formpay/internal/model"
	"formpay/internal/repository"
	"formpay/pkg/idgen"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmissionService 表单提交入口：筛选 feed -> 编排 -> 保存提交记录 -> 保存交易结果
//
// 同一表单重复提交会产生重复扣款，网关请求没有幂等键
type SubmissionService struct {
	formRepo      *repository.FormRepository
	feedRepo      *repository.FeedRepository
	entryRepo     *repository.EntryRepository
	txRepo        *repository.TransactionRepository
	userRepo      *repository.UserRepository
	orchestrator  *Orchestrator
	postProcessor *PostProcessor
}

func NewSubmissionService(db *gorm.DB, gateways gateway.Provider, cfg *config.Config) *SubmissionService {
	customerRepo := repository.NewCustomerRepository(db)
	cards := NewCardResolver(customerRepo)
	return &SubmissionService{
		formRepo:      repository.NewFormRepository(db),
		feedRepo:      repository.NewFeedRepository(db),
		entryRepo:     repository.NewEntryRepository(db),
		txRepo:        repository.NewTransactionRepository(db),
		userRepo:      repository.NewUserRepository(db),
		orchestrator:  NewOrchestrator(gateways, NewCustomerResolver(customerRepo, cards), cards, NewBuilder(time.Now)),
		postProcessor: NewPostProcessor(db, cfg),
	}
}

type SubmitRequest struct {
	UserID   *int64              `json:"user_id"`
	Values   map[string]string   `json:"values" binding:"required"`
	Products []model.ProductLine `json:"products"`
	Shipping *model.ShippingLine `json:"shipping"`
	Payment  PaymentInput        `json:"payment"`
}

type SubmitResponse struct {
	EntryID       int64                      `json:"entry_id"`
	EntryNo       string                     `json:"entry_no"`
	PaymentStatus string                     `json:"payment_status,omitempty"`
	PaymentMode   string                     `json:"payment_mode,omitempty"`
	Transactions  []*model.TransactionRecord `json:"transactions"`
}

func (s *SubmissionService) Submit(ctx context.Context, formID int64, req *SubmitRequest) (*SubmitResponse, error) {
	form, err := s.formRepo.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}

	input := &SubmissionInput{
		FormID:   formID,
		UserID:   req.UserID,
		Values:   req.Values,
		Products: req.Products,
		Shipping: req.Shipping,
		Payment:  req.Payment,
	}
	if input.UserID != nil {
		user, err := s.userRepo.GetByID(ctx, *input.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("查询用户失败: %w", err)
		}
		input.UserEmail = user.Email
	}

	entry := &model.Entry{
		EntryNo:   idgen.GenerateEntryNo(),
		FormID:    form.ID,
		CreatedBy: input.UserID,
		Values:    datatypes.NewJSONType(input.Values),
		Products:  datatypes.NewJSONType(input.Products),
		Shipping:  datatypes.NewJSONType(input.Shipping),
		Currency:  form.Currency,
	}

	feeds, err := s.feedsToProcess(ctx, form, input.Values)
	if err != nil {
		return nil, err
	}

	outcome, err := s.orchestrator.Process(ctx, form, entry, feeds, input)
	if err != nil {
		return nil, err
	}

	// 所有 feed 都成功后才保存提交记录
	if err := s.entryRepo.Create(ctx, nil, entry); err != nil {
		return nil, fmt.Errorf("保存提交记录失败: %w", err)
	}
	if err := s.postProcessor.Process(ctx, entry, outcome, input); err != nil {
		// 网关侧已扣款，这里只能记录下来人工处理
		log.Printf("[Submission] 保存交易结果失败，需人工核对: entry=%d, err=%v", entry.ID, err)
		return nil, fmt.Errorf("保存交易结果失败: %w", err)
	}

	log.Printf("[Submission] 提交完成: form=%d, entry=%d, feeds=%d", form.ID, entry.ID, len(outcome.Results))

	resp := &SubmitResponse{
		EntryID:       entry.ID,
		EntryNo:       entry.EntryNo,
		PaymentStatus: entry.PaymentStatus,
		PaymentMode:   entry.PaymentMode,
		Transactions:  make([]*model.TransactionRecord, 0, len(outcome.Results)),
	}
	for _, result := range outcome.Results {
		resp.Transactions = append(resp.Transactions, result.Record)
	}
	return resp, nil
}

// feedsToProcess 启用且条件成立的 feed，按配置顺序
func (s *SubmissionService) feedsToProcess(ctx context.Context, form *model.Form, values map[string]string) ([]*model.Feed, error) {
	feeds, err := s.feedRepo.ListByFormID(ctx, form.ID, true)
	if err != nil {
		return nil, fmt.Errorf("查询 feed 失败: %w", err)
	}
	matched := make([]*model.Feed, 0, len(feeds))
	for _, feed := range feeds {
		if feed.Condition.Data().Evaluate(values) {
			matched = append(matched, feed)
		}
	}
	return matched, nil
}

// ListTransactions 提交记录的全部交易
func (s *SubmissionService) ListTransactions(ctx context.Context, entryID int64) ([]*model.TransactionRecord, error) {
	if _, err := s.entryRepo.Get(ctx, entryID); err != nil {
		return nil, err
	}
	return s.txRepo.ListByEntry(ctx, entryID)
}
