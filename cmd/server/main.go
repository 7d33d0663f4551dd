package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"formpay/internal/config"
	"formpay/internal/gateway"
	"formpay/internal/handler"
	"formpay/internal/infrastructure/cache"
	"formpay/internal/infrastructure/database"
	"formpay/internal/infrastructure/mq"
	"formpay/internal/job"
	"formpay/pkg/idgen"
)

func main() {
	cfg := config.LoadConfig("config/config.yaml")

	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		log.Fatalf("初始化 ID 生成器失败: %v", err)
	}

	// 连接时自动迁移表结构
	db := database.InitMySQL(&cfg.MySQL)

	redisClient := cache.InitRedis(&cfg.Redis)

	producer := mq.InitKafka(&cfg.Kafka)
	defer producer.Close()

	gateways := gateway.NewRegistry(&cfg.Gateway)
	for _, mode := range []string{config.ModeTest, config.ModeLive} {
		if err := cfg.Gateway.Validate(mode); err != nil {
			log.Printf("网关配置不完整，该环境的 feed 无法处理: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 支付事件投递
	outboxSender := job.NewOutboxSender(db, producer, cfg)
	go outboxSender.Start(ctx)

	router := handler.SetupRouter(db, redisClient, gateways, cfg)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	cancel()
	outboxSender.Stop()

	// 网关调用最长 30 秒，给进行中的提交留出时间
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
