// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Admin         AdminConfig         `mapstructure:"admin"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Intent        IntentConfig        `mapstructure:"intent"`
	Analytics     AnalyticsConfig     `mapstructure:"analytics"`
	Memory        MemoryConfig        `mapstructure:"memory"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Discord       DiscordConfig       `mapstructure:"discord"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。DSN 为空时不启用问答审计表。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时不启用会话归档。
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	ArchiveTTL time.Duration `mapstructure:"archive_ttl"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// AdminConfig 存储管理员账号。PasswordHash 为 bcrypt 哈希，可用 `hash-password` 子命令生成。
type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不发布交互事件。
type KafkaConfig struct {
	Brokers     string `mapstructure:"brokers"`
	Topic       string `mapstructure:"topic"`
	Replicate   bool   `mapstructure:"replicate"`
	ConsumerTag string `mapstructure:"consumer_tag"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。Addresses 为空时不建立索引。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。Endpoint 为空时不支持快照导出。
type MinIOConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	BucketName      string        `mapstructure:"bucket_name"`
	URLExpiry       time.Duration `mapstructure:"url_expiry"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Timeout    time.Duration       `mapstructure:"timeout"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置系统提示与上下文包裹格式（可选）。
type LLMPromptConfig struct {
	Rules        string `mapstructure:"rules"`
	RefStart     string `mapstructure:"ref_start"`
	RefEnd       string `mapstructure:"ref_end"`
	NoResultText string `mapstructure:"no_result_text"`
}

// IntentConfig 选择意图分类器实现：keyword 或 llm。
// llm 模式下 APIKey/BaseURL 为空时沿用 llm 段的设置。
type IntentConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AnalyticsConfig 选择 NFT 数据源：http 或 demo。
type AnalyticsConfig struct {
	Provider string        `mapstructure:"provider"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Chain    string        `mapstructure:"chain"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Seed     int64         `mapstructure:"seed"`
}

// MemoryConfig 存储会话记忆的上限、词表与定期清理设置。
// 词表为空时使用内置默认值。
type MemoryConfig struct {
	Cap                  int                 `mapstructure:"cap"`
	ContextWindow        int                 `mapstructure:"context_window"`
	MaxAge               time.Duration       `mapstructure:"max_age"`
	SweepSchedule        string              `mapstructure:"sweep_schedule"`
	Topics               map[string][]string `mapstructure:"topics"`
	ConservativeKeywords []string            `mapstructure:"conservative_keywords"`
	AggressiveKeywords   []string            `mapstructure:"aggressive_keywords"`
}

// RateLimitConfig 配置聊天与分析接口的令牌桶限流。RequestsPerSecond <= 0 时不限流。
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// TelegramConfig 存储 Telegram 机器人配置。
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	Proxy   string `mapstructure:"proxy"`
}

// DiscordConfig 存储 Discord 机器人配置。
type DiscordConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	Prefix  string `mapstructure:"prefix"`
}

// setDefaults 设置所有可省略项的默认值。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.redis.archive_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.access_token_expire_hours", 12)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("kafka.topic", "nft-sage-interactions")
	v.SetDefault("elasticsearch.index_name", "nft_sage_interactions")
	v.SetDefault("minio.bucket_name", "nft-sage-snapshots")
	v.SetDefault("minio.url_expiry", time.Hour)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("intent.provider", "keyword")
	v.SetDefault("intent.timeout", 10*time.Second)
	v.SetDefault("analytics.provider", "demo")
	v.SetDefault("analytics.chain", "ethereum")
	v.SetDefault("analytics.timeout", 15*time.Second)
	v.SetDefault("memory.cap", 20)
	v.SetDefault("memory.context_window", 10)
	v.SetDefault("memory.max_age", 24*time.Hour)
	v.SetDefault("memory.sweep_schedule", "@every 10m")
	v.SetDefault("ratelimit.requests_per_second", 2.0)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("discord.prefix", "!")
}

// Load 从指定路径读取 YAML 文件并解析配置，环境变量 NFTSAGE_* 可覆盖文件中的值。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("NFTSAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Init 初始化配置加载，并将结果写入全局 Conf 变量。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}

// Validate 检查配置的合法性。
func (c *Config) Validate() error {
	if c.Memory.Cap <= 0 {
		return fmt.Errorf("memory.cap 必须大于 0")
	}
	if c.Memory.MaxAge <= 0 {
		return fmt.Errorf("memory.max_age 必须大于 0")
	}
	switch c.Intent.Provider {
	case "keyword", "llm":
	default:
		return fmt.Errorf("未知的 intent.provider: %q", c.Intent.Provider)
	}
	switch c.Analytics.Provider {
	case "demo":
	case "http":
		if c.Analytics.BaseURL == "" {
			return fmt.Errorf("analytics.provider=http 时必须配置 analytics.base_url")
		}
	default:
		return fmt.Errorf("未知的 analytics.provider: %q", c.Analytics.Provider)
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram.enabled 时必须配置 telegram.token")
	}
	if c.Discord.Enabled && c.Discord.Token == "" {
		return fmt.Errorf("discord.enabled 时必须配置 discord.token")
	}
	return nil
}
