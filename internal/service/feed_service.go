package service

import (
	"context"
	"fmt"

	"formpay/internal/config"
	"formpay/internal/gateway"
	"formpay/internal/model"
	"formpay/internal/repository"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FeedService 表单与 feed 配置，以及用户已保存的支付方式
type FeedService struct {
	cfg          *config.Config
	formRepo     *repository.FormRepository
	feedRepo     *repository.FeedRepository
	customerRepo *repository.CustomerRepository
}

func NewFeedService(db *gorm.DB, cfg *config.Config) *FeedService {
	return &FeedService{
		cfg:          cfg,
		formRepo:     repository.NewFormRepository(db),
		feedRepo:     repository.NewFeedRepository(db),
		customerRepo: repository.NewCustomerRepository(db),
	}
}

type CreateFormRequest struct {
	Title    string            `json:"title" binding:"required"`
	Currency string            `json:"currency"`
	Fields   []model.FormField `json:"fields"`
}

func (s *FeedService) CreateForm(ctx context.Context, req *CreateFormRequest) (*model.Form, error) {
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	form := &model.Form{
		Title:    req.Title,
		Currency: currency,
		Fields:   datatypes.NewJSONType(req.Fields),
	}
	if err := s.formRepo.Create(ctx, form); err != nil {
		return nil, fmt.Errorf("创建表单失败: %w", err)
	}
	return form, nil
}

type CreateFeedRequest struct {
	FormID      int64                  `json:"form_id" binding:"required"`
	Name        string                 `json:"name" binding:"required"`
	IsActive    *bool                  `json:"is_active"`
	SortOrder   int                    `json:"sort_order"`
	Mode        string                 `json:"mode" binding:"required,oneof=test live"`
	PaymentType string                 `json:"payment_type" binding:"required,oneof=one_time subscription"`
	Meta        model.FeedMeta         `json:"meta"`
	Condition   model.ConditionalLogic `json:"condition"`
}

// CreateFeed 保存前先解析一次配置，不合法的 feed 不落库
func (s *FeedService) CreateFeed(ctx context.Context, req *CreateFeedRequest) (*model.Feed, error) {
	if _, err := s.formRepo.GetByID(ctx, req.FormID); err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	feed := &model.Feed{
		FormID:      req.FormID,
		Name:        req.Name,
		IsActive:    active,
		SortOrder:   req.SortOrder,
		Mode:        req.Mode,
		PaymentType: req.PaymentType,
		Meta:        datatypes.NewJSONType(req.Meta),
		Condition:   datatypes.NewJSONType(req.Condition),
	}
	if _, err := feed.ResolveConfig(); err != nil {
		return nil, err
	}

	if err := s.feedRepo.Create(ctx, feed); err != nil {
		return nil, fmt.Errorf("创建 feed 失败: %w", err)
	}
	return feed, nil
}

func (s *FeedService) ListFeeds(ctx context.Context, formID int64) ([]*model.Feed, error) {
	return s.feedRepo.ListByFormID(ctx, formID, false)
}

type PaymentMethod struct {
	CardID     string `json:"card_id"`
	CardNumber string `json:"card_number"`
	Last4      string `json:"last4"`
	CardType   string `json:"card_type"`
	Label      string `json:"label"`
	IsDefault  bool   `json:"is_default"`
}

// ListPaymentMethods 用户在某个环境、当前商户下保存的卡，默认卡排在最前
func (s *FeedService) ListPaymentMethods(ctx context.Context, userID int64, mode string) ([]PaymentMethod, error) {
	env, err := s.cfg.Gateway.Env(mode)
	if err != nil {
		return nil, err
	}
	cards, err := s.customerRepo.ListCards(ctx, userID, mode)
	if err != nil {
		return nil, err
	}

	methods := make([]PaymentMethod, 0, len(cards))
	for _, card := range cards {
		if card.MerchantID != env.MerchantID {
			continue
		}
		methods = append(methods, PaymentMethod{
			CardID:     card.CardID,
			CardNumber: card.CardNumber,
			Last4:      card.Last4,
			CardType:   card.CardType,
			Label:      gateway.CardTypeLabel(card.TypeID),
			IsDefault:  card.IsDefault,
		})
	}
	return methods, nil
}
