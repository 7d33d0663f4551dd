package handler

import (
	"formpay/internal/config"
	"formpay/internal/gateway"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, gateways gateway.Provider, cfg *config.Config) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())

	h := NewHandler(db, rdb, gateways, cfg)

	api := r.Group("/api/v1")
	api.Use(CORSMiddleware())
	{
		forms := api.Group("/forms")
		{
			forms.POST("", h.CreateForm)
			forms.POST("/:form_id/submissions", h.Submit)
			forms.GET("/:form_id/feeds", h.ListFeeds)
		}

		api.POST("/feeds", h.CreateFeed)

		entries := api.Group("/entries")
		{
			entries.GET("/:entry_id/transactions", h.ListTransactions)
			entries.POST("/:entry_id/payment-action", h.PaymentAction)
		}

		api.GET("/users/:user_id/payment-methods", h.ListPaymentMethods)

		settings := api.Group("/settings")
		{
			settings.GET("/plans", h.ListPlans)
			settings.GET("/transient-key", h.TransientKey)
			settings.POST("/validate", h.ValidateCredentials)
			settings.POST("/webhook", h.EnsureWebhook)
		}
	}

	// 网关回调
	r.POST("/callback/qualpay", h.Callback)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
