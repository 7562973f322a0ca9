package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Env      string         `mapstructure:"env"` // 环境: development, production
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	AI       AIConfig       `mapstructure:"ai"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig 数据库配置
// Host 为空时整个进程只使用内存存储后端
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 秒
}

// IsConfigured 判断数据库是否已配置
func (c DatabaseConfig) IsConfigured() bool {
	return c.Host != ""
}

// OCRConfig 百度 OCR 服务配置
// APIKey/SecretKey 为空时 OCR 适配器直接走降级输出
type OCRConfig struct {
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"`
	TokenURL  string `mapstructure:"token_url"`
	Timeout   int    `mapstructure:"timeout"` // 秒
}

// IsConfigured 判断 OCR 服务是否已配置
func (c OCRConfig) IsConfigured() bool {
	return c.APIKey != "" && c.SecretKey != ""
}

// AIConfig DeepSeek AI 分析服务配置
// APIKey 为空时 AI 适配器直接使用规则评分引擎
type AIConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
	Timeout  int    `mapstructure:"timeout"` // 秒
}

// IsConfigured 判断 AI 服务是否已配置
func (c AIConfig) IsConfigured() bool {
	return c.APIKey != ""
}

// UploadConfig 上传约束配置
// 最大文件体积因部署环境而异,不允许硬编码
type UploadConfig struct {
	MaxFileSize int64    `mapstructure:"max_file_size"` // 字节
	RateLimit   float64  `mapstructure:"rate_limit"`    // 每秒请求数
	RateBurst   int      `mapstructure:"rate_burst"`
	MIMETypes   []string `mapstructure:"mime_types"`
}

// PipelineConfig 处理流水线配置
type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
	Timeout int `mapstructure:"timeout"` // 单任务整体超时,秒
}

// CleanupConfig 过期任务清理配置
type CleanupConfig struct {
	Interval int `mapstructure:"interval"` // 扫描间隔,秒
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error
	Format string `mapstructure:"format"` // 日志格式: json, text
	Output string `mapstructure:"output"` // 输出位置: stdout, file, both
}

// Load 加载配置,支持配置文件和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果提供了配置文件路径,从文件加载
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		// 尝试从默认位置加载
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.foodsafety")
		// 忽略配置文件不存在的错误,使用默认值
		_ = v.ReadInConfig()
	}

	// 支持环境变量
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// IsProduction 判断是否为生产环境
func IsProduction(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Env == "production"
}

// Default 返回默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 环境变量
	env := v.GetString("env")
	if env == "" {
		env = os.Getenv("APP_ENV")
		if env == "" {
			env = "development"
		}
	}
	v.SetDefault("env", env)

	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// 数据库默认配置
	// host 默认为空: 未显式配置时只使用内存存储
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "foodsafety")
	v.SetDefault("database.sslmode", "disable")

	// 数据库连接池配置（根据环境设置默认值）
	if env == "production" {
		v.SetDefault("database.max_idle_conns", 20)
		v.SetDefault("database.max_open_conns", 200)
		v.SetDefault("database.conn_max_lifetime", 3600) // 1 小时
		v.SetDefault("database.conn_max_idle_time", 300) // 5 分钟
	} else {
		v.SetDefault("database.max_idle_conns", 10)
		v.SetDefault("database.max_open_conns", 100)
		v.SetDefault("database.conn_max_lifetime", 3600) // 1 小时
		v.SetDefault("database.conn_max_idle_time", 600) // 10 分钟
	}

	// OCR 服务默认配置
	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.secret_key", "")
	v.SetDefault("ocr.endpoint", "https://aip.baidubce.com/rest/2.0/ocr/v1/accurate_basic")
	v.SetDefault("ocr.token_url", "https://aip.baidubce.com/oauth/2.0/token")
	v.SetDefault("ocr.timeout", 30)

	// AI 服务默认配置
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.endpoint", "https://api.deepseek.com/v1/chat/completions")
	v.SetDefault("ai.model", "deepseek-chat")
	v.SetDefault("ai.timeout", 60)

	// 上传约束默认配置
	v.SetDefault("upload.max_file_size", 8*1024*1024) // 8MB
	v.SetDefault("upload.rate_limit", 10.0)
	v.SetDefault("upload.rate_burst", 20)
	v.SetDefault("upload.mime_types", []string{"image/jpeg", "image/png", "image/gif", "image/webp"})

	// 流水线默认配置
	v.SetDefault("pipeline.workers", 16)
	v.SetDefault("pipeline.timeout", 120) // 2 分钟

	// 清理默认配置
	v.SetDefault("cleanup.interval", 1800) // 30 分钟

	// CORS 默认配置
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "X-Request-ID"})
	v.SetDefault("cors.max_age", 86400)

	// 日志配置（根据环境设置默认值）
	if env == "production" {
		v.SetDefault("log.level", "warn")
		v.SetDefault("log.format", "json")
	} else {
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	}
	v.SetDefault("log.output", "stdout")
}
