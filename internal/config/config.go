package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ModeTest = "test"
	ModeLive = "live"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
	// WorkerID 多实例部署时每个实例必须不同，用于生成提交记录号
	WorkerID int64 `mapstructure:"worker_id"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PaymentEvent string `mapstructure:"payment_event"`
}

// GatewayConfig 支付网关配置，test / live 两套凭证互相独立
type GatewayConfig struct {
	DeveloperID    string           `mapstructure:"developer_id"`
	UserAgent      string           `mapstructure:"user_agent"`
	TimeoutSeconds int              `mapstructure:"timeout_seconds"`
	CallbackURL    string           `mapstructure:"callback_url"`
	WebhookLabel   string           `mapstructure:"webhook_label"`
	NotifyEmails   []string         `mapstructure:"notify_emails"`
	Test           GatewayEnvConfig `mapstructure:"test"`
	Live           GatewayEnvConfig `mapstructure:"live"`
}

type GatewayEnvConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	MerchantID    string `mapstructure:"merchant_id"`
	APIKey        string `mapstructure:"api_key"`
	WebhookID     string `mapstructure:"webhook_id"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type BusinessConfig struct {
	MaxRetryCount     int    `mapstructure:"max_retry_count"`
	ActionLockSeconds int    `mapstructure:"action_lock_seconds"`
	CustomerRole      string `mapstructure:"customer_role"`
}

var (
	ErrUnknownMode       = errors.New("未知的网关环境")
	ErrMissingMerchantID = errors.New("缺少 merchant_id")
	ErrMissingAPIKey     = errors.New("缺少 api_key")
)

var GlobalConfig *Config

// LoadConfig 加载配置文件
//
// 敏感信息（api_key、webhook_secret）允许放在 .env 或环境变量中，
// 例如 FORMPAY_GATEWAY_LIVE_API_KEY 覆盖 gateway.live.api_key
func LoadConfig(configPath string) *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("未加载 .env 文件: %v", err)
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("FORMPAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.worker_id", 1)
	viper.SetDefault("kafka.topic.payment_event", "payment_event")
	viper.SetDefault("gateway.user_agent", "formpay/1.0.0")
	viper.SetDefault("gateway.timeout_seconds", 30)
	viper.SetDefault("gateway.webhook_label", "formpay")
	viper.SetDefault("gateway.test.endpoint", "https://api-test.qualpay.com")
	viper.SetDefault("gateway.live.endpoint", "https://api.qualpay.com")
	viper.SetDefault("business.max_retry_count", 5)
	viper.SetDefault("business.action_lock_seconds", 30)
	viper.SetDefault("business.customer_role", "payment_customer")

	// 未绑定到配置文件的 key 不会被 AutomaticEnv 覆盖，这里显式绑定敏感项
	for _, mode := range []string{ModeTest, ModeLive} {
		for _, key := range []string{"merchant_id", "api_key", "webhook_id", "webhook_secret"} {
			_ = viper.BindEnv(fmt.Sprintf("gateway.%s.%s", mode, key))
		}
	}
}

// Env 返回指定环境的网关配置
func (c *GatewayConfig) Env(mode string) (*GatewayEnvConfig, error) {
	switch mode {
	case ModeTest:
		return &c.Test, nil
	case ModeLive:
		return &c.Live, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Validate 校验某个环境的凭证是否完整，配置错误应在运营侧暴露，不进入支付流程
func (c *GatewayConfig) Validate(mode string) error {
	env, err := c.Env(mode)
	if err != nil {
		return err
	}
	if env.MerchantID == "" {
		return fmt.Errorf("%s: %w", mode, ErrMissingMerchantID)
	}
	if env.APIKey == "" {
		return fmt.Errorf("%s: %w", mode, ErrMissingAPIKey)
	}
	return nil
}
