package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hook-relay/hook-relay/internal/proxy/retrypolicy"
	"github.com/hook-relay/hook-relay/internal/routing"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.BodyLimit <= 0 {
		return newFieldError("Global.BodyLimit", "必须大于 0")
	}
	if g.LogMaxSize < 0 || g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxSize/LogMaxBackups", "不能为负数")
	}

	b := &c.Backend
	if raw := strings.TrimSpace(b.BaseURL); raw != "" {
		if err := validateBaseURL(raw); err != nil {
			return fmt.Errorf("Backend.BaseURL: %w", err)
		}
		b.BaseURL = raw
	}

	variant, err := routing.ParseVariant(b.RoutingVariant)
	if err != nil {
		return newFieldError("Backend.RoutingVariant", "仅支持 "+string(routing.VariantModeSegment)+"/"+string(routing.VariantQueryFlag))
	}
	b.RoutingVariant = string(variant)

	policy := strings.ToLower(strings.TrimSpace(b.RetryPolicy))
	if policy == "" {
		policy = retrypolicy.NameStatus
	}
	if _, ok := retrypolicy.Fetch(policy); !ok {
		return newFieldError("Backend.RetryPolicy", "仅支持 "+strings.Join(retrypolicy.Keys(), "/"))
	}
	b.RetryPolicy = policy

	return nil
}

func validateBaseURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，后端: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("后端缺少 Host: %s", raw)
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("后端地址不应包含查询串或片段: %s", raw)
	}
	return nil
}
