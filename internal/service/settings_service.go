package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"formpay/internal/config"
	"formpay/internal/gateway"
	"formpay/internal/infrastructure/cache"
	"formpay/internal/model"
	"formpay/internal/repository"

	"gorm.io/gorm"
)

// SettingsService 网关凭证、webhook 注册、计划列表和卸载
type SettingsService struct {
	db              *gorm.DB
	cfg             *config.Config
	gateways        gateway.Provider
	planCache       *cache.PlanCache
	entryRepo       *repository.EntryRepository
	transactionRepo *repository.TransactionRepository
	customerRepo    *repository.CustomerRepository
}

func NewSettingsService(db *gorm.DB, gateways gateway.Provider, planCache *cache.PlanCache, cfg *config.Config) *SettingsService {
	return &SettingsService{
		db:              db,
		cfg:             cfg,
		gateways:        gateways,
		planCache:       planCache,
		entryRepo:       repository.NewEntryRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		customerRepo:    repository.NewCustomerRepository(db),
	}
}

type CredentialsResult struct {
	Mode          string `json:"mode"`
	APIKeyValid   bool   `json:"api_key_valid"`
	MerchantValid bool   `json:"merchant_valid"`
	Message       string `json:"message,omitempty"`
}

// ValidateCredentials 分别校验 api_key 和 merchant_id
func (s *SettingsService) ValidateCredentials(ctx context.Context, mode string) (*CredentialsResult, error) {
	result := &CredentialsResult{Mode: mode}
	if err := s.cfg.Gateway.Validate(mode); err != nil {
		result.Message = err.Error()
		return result, nil
	}

	api, err := s.gateways.API(mode)
	if err != nil {
		return nil, err
	}
	if _, err := api.BrowseWebhooks(ctx, 1); err != nil {
		log.Printf("[Settings] api_key 校验失败: mode=%s, err=%v", mode, err)
		result.Message = decodeError("validate_api_key", err)
		return result, nil
	}
	result.APIKeyValid = true

	if _, err := api.GetMerchantSettings(ctx); err != nil {
		log.Printf("[Settings] merchant_id 校验失败: mode=%s, err=%v", mode, err)
		result.Message = decodeError("validate_merchant", err)
		return result, nil
	}
	result.MerchantValid = true
	return result, nil
}

type WebhookRegistration struct {
	Mode      string `json:"mode"`
	WebhookID string `json:"webhook_id"`
	Secret    string `json:"-"`
	Created   bool   `json:"created"`
}

// EnsureWebhook 已注册且为 ACTIVE 时沿用，否则新建
// 新的 id 和密钥写回内存配置，运维需要同步到配置文件或环境变量
func (s *SettingsService) EnsureWebhook(ctx context.Context, mode string) (*WebhookRegistration, error) {
	env, err := s.cfg.Gateway.Env(mode)
	if err != nil {
		return nil, err
	}
	if err := s.cfg.Gateway.Validate(mode); err != nil {
		return nil, err
	}
	api, err := s.gateways.API(mode)
	if err != nil {
		return nil, err
	}

	if env.WebhookID != "" {
		hook, err := api.GetWebhook(ctx, env.WebhookID)
		if err == nil && hook.Status == gateway.WebhookStatusActive {
			return &WebhookRegistration{Mode: mode, WebhookID: env.WebhookID, Secret: env.WebhookSecret}, nil
		}
		if err != nil {
			log.Printf("[Settings] 查询 webhook 失败，重新注册: mode=%s, id=%s, err=%v", mode, env.WebhookID, err)
		}
	}

	hook, err := api.AddWebhook(ctx, &gateway.WebhookRequest{
		Label:           s.cfg.Gateway.WebhookLabel,
		NotificationURL: s.cfg.Gateway.CallbackURL,
		WebhookNode:     env.MerchantID,
		EmailAddress:    s.cfg.Gateway.NotifyEmails,
		Events:          model.SubscribedWebhookEvents,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWebhookNotCreated, decodeError("add_webhook", err))
	}
	if hook.WebhookID == "" {
		return nil, ErrWebhookNotCreated
	}

	env.WebhookID = hook.WebhookID.String()
	env.WebhookSecret = hook.SigningSecret()
	log.Printf("[Settings] webhook 注册成功: mode=%s, id=%s", mode, env.WebhookID)

	return &WebhookRegistration{Mode: mode, WebhookID: env.WebhookID, Secret: env.WebhookSecret, Created: true}, nil
}

// DisableWebhook 未注册时直接返回
func (s *SettingsService) DisableWebhook(ctx context.Context, mode string) error {
	env, err := s.cfg.Gateway.Env(mode)
	if err != nil {
		return err
	}
	if env.WebhookID == "" || env.APIKey == "" {
		return nil
	}
	api, err := s.gateways.API(mode)
	if err != nil {
		return err
	}
	if err := api.DisableWebhook(ctx, env.WebhookID); err != nil {
		return fmt.Errorf("禁用 webhook 失败: %w", err)
	}
	log.Printf("[Settings] webhook 已禁用: mode=%s, id=%s", mode, env.WebhookID)
	env.WebhookID = ""
	env.WebhookSecret = ""
	return nil
}

// ListPlans 有效计划列表，结果缓存在 redis
func (s *SettingsService) ListPlans(ctx context.Context, mode string) ([]gateway.Plan, error) {
	api, err := s.gateways.API(mode)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.planCache.Get(ctx, mode, api.MerchantID()); ok {
		var plans []gateway.Plan
		if err := json.Unmarshal([]byte(cached), &plans); err == nil {
			return plans, nil
		}
		s.planCache.Invalidate(ctx, mode, api.MerchantID())
	}

	plans, err := api.GetPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrGatewayFailed, decodeError("get_plans", err))
	}
	if raw, err := json.Marshal(plans); err == nil {
		s.planCache.Set(ctx, mode, api.MerchantID(), string(raw))
	}
	return plans, nil
}

func (s *SettingsService) TransientKey(ctx context.Context, mode string) (string, error) {
	api, err := s.gateways.API(mode)
	if err != nil {
		return "", err
	}
	key, err := api.GetTransientKey(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrGatewayFailed, decodeError("transient_key", err))
	}
	return key, nil
}

// VaultCards 查询网关 vault 中客户绑定的卡
func (s *SettingsService) VaultCards(ctx context.Context, mode, customerID string) ([]gateway.BillingCardInfo, error) {
	api, err := s.gateways.API(mode)
	if err != nil {
		return nil, err
	}
	cards, err := api.GetBillingCards(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrGatewayFailed, decodeError("get_billing_cards", err))
	}
	return cards, nil
}

// RemoveVaultCard 从 vault 解绑卡，并删除本地保存的同一张卡
// 网关删除失败时不动本地数据
func (s *SettingsService) RemoveVaultCard(ctx context.Context, mode, customerID, cardID string) (int64, error) {
	api, err := s.gateways.API(mode)
	if err != nil {
		return 0, err
	}
	if err := api.DeleteBillingCard(ctx, customerID, cardID); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrGatewayFailed, decodeError("delete_billing_card", err))
	}
	removed, err := s.customerRepo.DeleteCard(ctx, nil, cardID, mode)
	if err != nil {
		return 0, fmt.Errorf("删除本地卡失败: %w", err)
	}
	log.Printf("[Settings] 已删除卡: mode=%s, customer=%s, card=%s, local=%d", mode, customerID, cardID, removed)
	return removed, nil
}

type UninstallResult struct {
	TransactionsDeleted int64 `json:"transactions_deleted"`
	EntriesCleared      int64 `json:"entries_cleared"`
}

// Uninstall 禁用两个环境的 webhook，删除全部 transaction_info 和提交记录上的 payment_mode
// webhook 禁用失败只记录日志，本地数据照常清理
func (s *SettingsService) Uninstall(ctx context.Context) (*UninstallResult, error) {
	for _, mode := range []string{config.ModeTest, config.ModeLive} {
		if err := s.DisableWebhook(ctx, mode); err != nil {
			log.Printf("[Settings] 卸载时禁用 webhook 失败: mode=%s, err=%v", mode, err)
		}
	}

	result := &UninstallResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		deleted, err := s.transactionRepo.DeleteAll(ctx, tx)
		if err != nil {
			return fmt.Errorf("删除交易记录失败: %w", err)
		}
		cleared, err := s.entryRepo.ClearPaymentMode(ctx, tx)
		if err != nil {
			return fmt.Errorf("清理 payment_mode 失败: %w", err)
		}
		result.TransactionsDeleted = deleted
		result.EntriesCleared = cleared
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Settings] 卸载完成: transactions=%d, entries=%d", result.TransactionsDeleted, result.EntriesCleared)
	return result, nil
}
