// Package config 提供了统一的配置加载与管理能力.
// 配置文件为 TOML，支持 APP_ 前缀的环境变量覆盖、结构体校验与热更新回调.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/wyfcoding/revmgmt/logging"
)

// Config 全局顶级配置结构.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    toml:"server"`
	Log       LogConfig       `mapstructure:"log"       toml:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   toml:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"   toml:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" toml:"ratelimit"`
	Snowflake SnowflakeConfig `mapstructure:"snowflake" toml:"snowflake"`
	Optimizer OptimizerConfig `mapstructure:"optimizer" toml:"optimizer"`
	Kafka     KafkaConfig     `mapstructure:"kafka"     toml:"kafka"`
	Version   string          `mapstructure:"version"   toml:"version"`
}

// ServerConfig 定义服务器运行时的基础网络与环境参数.
type ServerConfig struct {
	Name        string `mapstructure:"name"        toml:"name"        validate:"required"`
	Environment string `mapstructure:"environment" toml:"environment" validate:"oneof=dev test prod"`
	HTTP        struct {
		Addr              string        `mapstructure:"addr"                toml:"addr"`
		Port              int           `mapstructure:"port"                toml:"port"                validate:"required,min=1,max=65535"`
		Timeout           time.Duration `mapstructure:"timeout"             toml:"timeout"`
		ReadTimeout       time.Duration `mapstructure:"read_timeout"        toml:"read_timeout"`
		ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" toml:"read_header_timeout"`
		WriteTimeout      time.Duration `mapstructure:"write_timeout"       toml:"write_timeout"`
		IdleTimeout       time.Duration `mapstructure:"idle_timeout"        toml:"idle_timeout"`
		MaxHeaderBytes    int           `mapstructure:"max_header_bytes"    toml:"max_header_bytes"`
		ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"    toml:"shutdown_timeout"`
	} `mapstructure:"http" toml:"http"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"       validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format"      toml:"format"      validate:"omitempty,oneof=json console"`
	File       string `mapstructure:"file"        toml:"file"`
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"`
	Compress   bool   `mapstructure:"compress"    toml:"compress"`
}

// TracingConfig 分布式链路追踪（OpenTelemetry）配置.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"gte=0,lte=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
type MetricsConfig struct {
	Port    string `mapstructure:"port"    toml:"port"`
	Path    string `mapstructure:"path"    toml:"path"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// RateLimitConfig 定义令牌桶限流参数.
type RateLimitConfig struct {
	Rate    int  `mapstructure:"rate"    toml:"rate"    validate:"gte=0"`
	Burst   int  `mapstructure:"burst"   toml:"burst"   validate:"gte=0"`
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
}

// SnowflakeConfig 分布式 ID 生成器参数.
type SnowflakeConfig struct {
	StartTime string `mapstructure:"start_time" toml:"start_time"`
	Type      string `mapstructure:"type"       toml:"type"       validate:"omitempty,oneof=snowflake sonyflake"`
	MachineID int64  `mapstructure:"machine_id" toml:"machine_id"`
}

// OptimizerConfig 座位控制计算参数.
type OptimizerConfig struct {
	DefaultMethod    string        `mapstructure:"default_method"    toml:"default_method"    validate:"omitempty,oneof=EMSRb EMSRb_MR EMSRb_MR_step"`
	TopClassPolicy   string        `mapstructure:"top_class_policy"  toml:"top_class_policy"  validate:"omitempty,oneof=force_top_fare drop_undemanded"`
	MonotonicRepair  bool          `mapstructure:"monotonic_repair"  toml:"monotonic_repair"`
	Workers          int           `mapstructure:"workers"           toml:"workers"           validate:"gte=0"`
	MaxCapacity      int           `mapstructure:"max_capacity"      toml:"max_capacity"      validate:"gte=0"`
	BatchConcurrency int           `mapstructure:"batch_concurrency" toml:"batch_concurrency" validate:"gte=0"`
	Timeout          time.Duration `mapstructure:"timeout"           toml:"timeout"`
}

// KafkaConfig 定义计算结果下发所用的 Kafka 生产者参数.
type KafkaConfig struct {
	Enabled      bool                 `mapstructure:"enabled"       toml:"enabled"`
	Brokers      []string             `mapstructure:"brokers"       toml:"brokers"       validate:"required_if=Enabled true"`
	Topic        string               `mapstructure:"topic"         toml:"topic"         validate:"required_if=Enabled true"`
	DLQTopic     string               `mapstructure:"dlq_topic"     toml:"dlq_topic"`
	DialTimeout  time.Duration        `mapstructure:"dial_timeout"  toml:"dial_timeout"`
	WriteTimeout time.Duration        `mapstructure:"write_timeout" toml:"write_timeout"`
	MaxAttempts  int                  `mapstructure:"max_attempts"  toml:"max_attempts"`
	RequiredAcks int                  `mapstructure:"required_acks" toml:"required_acks"`
	Async        bool                 `mapstructure:"async"         toml:"async"`
	Breaker      CircuitBreakerConfig `mapstructure:"breaker"       toml:"breaker"`
}

// CircuitBreakerConfig 定义熔断器（gobreaker）的保护策略.
type CircuitBreakerConfig struct {
	Interval     time.Duration `mapstructure:"interval"      toml:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"       toml:"timeout"`
	MaxRequests  uint32        `mapstructure:"max_requests"  toml:"max_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio" toml:"failure_ratio" validate:"gte=0,lte=1"`
	MinRequests  uint32        `mapstructure:"min_requests"  toml:"min_requests"`
	Enabled      bool          `mapstructure:"enabled"       toml:"enabled"`
}

var (
	mu        sync.Mutex
	vInstance = viper.New()
	onReload  []func(*Config)
	validate  = validator.New()
)

// RegisterReloadHook 注册配置热更新回调。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	onReload = append(onReload, hook)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "revmgmt")
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.timeout", 10*time.Second)
	v.SetDefault("server.http.read_header_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.sampler_ratio", 1.0)
	v.SetDefault("snowflake.type", "snowflake")
	v.SetDefault("snowflake.machine_id", 1)
	v.SetDefault("optimizer.default_method", "EMSRb_MR")
	v.SetDefault("optimizer.top_class_policy", "force_top_fare")
	v.SetDefault("optimizer.monotonic_repair", true)
	v.SetDefault("optimizer.max_capacity", 10000)
	v.SetDefault("optimizer.batch_concurrency", 8)
	v.SetDefault("optimizer.timeout", 5*time.Second)
	v.SetDefault("kafka.write_timeout", 5*time.Second)
	v.SetDefault("kafka.max_attempts", 3)
	v.SetDefault("kafka.required_acks", 1)
	v.SetDefault("kafka.breaker.timeout", 30*time.Second)
	v.SetDefault("kafka.breaker.failure_ratio", 0.5)
	v.SetDefault("kafka.breaker.min_requests", 5)
}

// Load 读取配置文件、应用环境变量覆盖并校验.
func Load(path string, conf *Config) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config error: %w", err)
	}

	if err := v.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}

	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	mu.Lock()
	vInstance = v
	mu.Unlock()

	return nil
}

// Watch 监听配置文件变化，校验通过后回写 conf、更新日志级别并触发热更新回调.
// 校验失败的新配置会被丢弃，conf 保持原值.
func Watch(conf *Config) {
	mu.Lock()
	v := vInstance
	mu.Unlock()

	v.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)

		var next Config
		if err := v.Unmarshal(&next); err != nil {
			slog.Error("reload config unmarshal failed", "error", err)
			return
		}
		if err := validate.Struct(&next); err != nil {
			slog.Error("reload config validation failed", "error", err)
			return
		}

		applyReload(conf, &next)
		slog.Info("config hot-reloaded and validated successfully")
	})
	v.WatchConfig()
}

func applyReload(conf, next *Config) {
	mu.Lock()
	*conf = *next
	hooks := append([]func(*Config){}, onReload...)
	mu.Unlock()

	logging.SetLevel(conf.Log.Level)
	for _, hook := range hooks {
		hook(conf)
	}
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)

		return
	}

	var configMap map[string]any
	if unmarshalErr := json.Unmarshal(data, &configMap); unmarshalErr != nil {
		slog.Error("failed to unmarshal config for masking", "error", unmarshalErr)

		return
	}

	mask(configMap)

	maskedJSON, marshalErr := json.MarshalIndent(configMap, "  ", "  ")
	if marshalErr != nil {
		slog.Error("failed to marshal masked config", "error", marshalErr)

		return
	}

	slog.Info("Current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)

			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"

				break
			}
		}
	}
}

// GetViper 返回最近一次 Load 使用的 Viper 实例.
func GetViper() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()
	return vInstance
}
