package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hook-relay/hook-relay/internal/proxy/retrypolicy"
	"github.com/hook-relay/hook-relay/internal/routing"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级行为：监听端口、日志与上游连接参数。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	BodyLimit       int      `mapstructure:"BodyLimit"`
}

// BackendConfig 决定请求被转发到哪里以及如何选择 test/production hook。
type BackendConfig struct {
	// BaseURL 允许为空：缺失时每个请求返回 500，而不是阻止进程启动。
	BaseURL        string `mapstructure:"BaseURL"`
	RoutingVariant string `mapstructure:"RoutingVariant"`
	RetryPolicy    string `mapstructure:"RetryPolicy"`
}

// Config 是配置文件 + 环境变量合并后的整体结构。
type Config struct {
	Global  GlobalConfig  `mapstructure:",squash"`
	Backend BackendConfig `mapstructure:",squash"`
}

// BaseEndpoint 返回解析后的后端地址；未配置或无法解析时 ok 为 false。
func (b BackendConfig) BaseEndpoint() (*url.URL, bool) {
	raw := strings.TrimSpace(b.BaseURL)
	if raw == "" {
		return nil, false
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return nil, false
	}
	return parsed, true
}

// HasBaseURL 表示后端地址是否已配置。
func (b BackendConfig) HasBaseURL() bool {
	_, ok := b.BaseEndpoint()
	return ok
}

// Variant 返回生效的路由变体，非法值回退为 mode-segment（Validate 已拦截）。
func (b BackendConfig) Variant() routing.Variant {
	variant, err := routing.ParseVariant(b.RoutingVariant)
	if err != nil {
		return routing.VariantModeSegment
	}
	return variant
}

// Policy 返回生效的重试判定策略。
func (b BackendConfig) Policy() retrypolicy.Policy {
	return retrypolicy.Resolve(b.RetryPolicy)
}
