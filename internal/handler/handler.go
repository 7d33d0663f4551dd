package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"formpay/internal/config"
	"formpay/internal/gateway"
	"formpay/internal/infrastructure/cache"
	"formpay/internal/model"
	"formpay/internal/repository"
	"formpay/internal/service"
	"formpay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	submissionService *service.SubmissionService
	actionService     *service.PaymentActionService
	webhookService    *service.WebhookService
	settingsService   *service.SettingsService
	feedService       *service.FeedService
}

func NewHandler(db *gorm.DB, rdb *redis.Client, gateways gateway.Provider, cfg *config.Config) *Handler {
	return &Handler{
		submissionService: service.NewSubmissionService(db, gateways, cfg),
		actionService:     service.NewPaymentActionService(db, rdb, gateways, cfg),
		webhookService:    service.NewWebhookService(db, cfg),
		settingsService:   service.NewSettingsService(db, gateways, cache.NewPlanCache(rdb), cfg),
		feedService:       service.NewFeedService(db, cfg),
	}
}

// ============================================================
// 表单提交
// ============================================================

// Submit 提交表单并执行支付
// POST /api/v1/forms/:form_id/submissions
//
// 任一 feed 失败时已完成的网关操作会被冲正，提交记录不会保存
func (h *Handler) Submit(c *gin.Context) {
	formID, ok := paramID(c, "form_id")
	if !ok {
		return
	}

	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.submissionService.Submit(c.Request.Context(), formID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// ListTransactions 提交记录上保存的交易结果
// GET /api/v1/entries/:entry_id/transactions
func (h *Handler) ListTransactions(c *gin.Context) {
	entryID, ok := paramID(c, "entry_id")
	if !ok {
		return
	}

	records, err := h.submissionService.ListTransactions(c.Request.Context(), entryID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"entry_id":     entryID,
		"transactions": records,
	})
}

// ============================================================
// 后台支付操作
// ============================================================

// PaymentAction void / capture / refund / pause / resume / cancel
// POST /api/v1/entries/:entry_id/payment-action
func (h *Handler) PaymentAction(c *gin.Context) {
	entryID, ok := paramID(c, "entry_id")
	if !ok {
		return
	}

	var req service.PaymentActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if req.RequestID == "" {
		req.RequestID = c.GetString(RequestIDKey)
	}

	result, err := h.actionService.Execute(c.Request.Context(), entryID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 表单与 feed
// ============================================================

// CreateForm POST /api/v1/forms
func (h *Handler) CreateForm(c *gin.Context) {
	var req service.CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	form, err := h.feedService.CreateForm(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, form)
}

// CreateFeed POST /api/v1/feeds
func (h *Handler) CreateFeed(c *gin.Context) {
	var req service.CreateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	feed, err := h.feedService.CreateFeed(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, feed)
}

// ListFeeds GET /api/v1/forms/:form_id/feeds
func (h *Handler) ListFeeds(c *gin.Context) {
	formID, ok := paramID(c, "form_id")
	if !ok {
		return
	}

	feeds, err := h.feedService.ListFeeds(c.Request.Context(), formID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"list": feeds})
}

// ListPaymentMethods GET /api/v1/users/:user_id/payment-methods?mode=
func (h *Handler) ListPaymentMethods(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	methods, err := h.feedService.ListPaymentMethods(c.Request.Context(), userID, c.DefaultQuery("mode", config.ModeLive))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"list": methods})
}

// ============================================================
// 网关设置
// ============================================================

// ListPlans GET /api/v1/settings/plans?mode=
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.settingsService.ListPlans(c.Request.Context(), c.DefaultQuery("mode", config.ModeLive))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"list": plans})
}

// TransientKey GET /api/v1/settings/transient-key?mode=
func (h *Handler) TransientKey(c *gin.Context) {
	key, err := h.settingsService.TransientKey(c.Request.Context(), c.DefaultQuery("mode", config.ModeLive))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"transient_key": key})
}

// ValidateCredentials POST /api/v1/settings/validate?mode=
func (h *Handler) ValidateCredentials(c *gin.Context) {
	result, err := h.settingsService.ValidateCredentials(c.Request.Context(), c.DefaultQuery("mode", config.ModeLive))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// EnsureWebhook POST /api/v1/settings/webhook?mode=
func (h *Handler) EnsureWebhook(c *gin.Context) {
	result, err := h.settingsService.EnsureWebhook(c.Request.Context(), c.DefaultQuery("mode", config.ModeLive))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 网关回调
// ============================================================

// Callback 网关 webhook
// POST /callback/qualpay
//
// 验签失败返回 401，其余情况（包括未知事件、找不到订阅）一律 200，避免网关反复重试
func (h *Handler) Callback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Abort(c, http.StatusBadRequest, response.CodeParamError, "读取请求体失败")
		return
	}

	action, err := h.webhookService.HandleCallback(c.Request.Context(), body, c.GetHeader(gateway.SignatureHeader))
	switch {
	case errors.Is(err, service.ErrInvalidSignature):
		response.Abort(c, http.StatusUnauthorized, response.CodeSignatureInvalid, "invalid signature")
		return
	case errors.Is(err, service.ErrInvalidPayload):
		response.Abort(c, http.StatusBadRequest, response.CodeParamError, "invalid payload")
		return
	case err != nil:
		response.Abort(c, http.StatusInternalServerError, response.CodeServerError, "callback failed")
		return
	}

	response.SuccessWithStatus(c, http.StatusOK, action)
}

// ============================================================
// 辅助函数
// ============================================================

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, name+" 参数错误")
		return 0, false
	}
	return id, true
}

// writeError 把服务层错误映射成业务错误码
func writeError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.BusinessError(c, response.CodeValidationFailed, validationErr.Message)
	case errors.Is(err, repository.ErrFormNotFound):
		response.BusinessError(c, response.CodeFormNotFound, err.Error())
	case errors.Is(err, repository.ErrEntryNotFound),
		errors.Is(err, repository.ErrTransactionNotFound):
		response.BusinessError(c, response.CodeEntryNotFound, err.Error())
	case errors.Is(err, repository.ErrFeedNotFound),
		errors.Is(err, model.ErrInvalidFeedConfig):
		response.BusinessError(c, response.CodeFeedInvalid, err.Error())
	case errors.Is(err, repository.ErrUserNotFound):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrActionNotAllowed),
		errors.Is(err, service.ErrStatusInvalid),
		errors.Is(err, service.ErrNoPaymentMode):
		response.BusinessError(c, response.CodeStatusInvalid, err.Error())
	case errors.Is(err, service.ErrActionInProgress):
		response.BusinessError(c, response.CodeDuplicateRequest, err.Error())
	case errors.Is(err, service.ErrGatewayFailed),
		errors.Is(err, service.ErrWebhookNotCreated):
		response.BusinessError(c, response.CodePaymentFailed, err.Error())
	case errors.Is(err, config.ErrUnknownMode),
		errors.Is(err, config.ErrMissingMerchantID),
		errors.Is(err, config.ErrMissingAPIKey):
		response.BusinessError(c, response.CodeGatewayNotConfigured, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}
