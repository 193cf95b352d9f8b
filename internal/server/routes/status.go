package routes

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/hook-relay/hook-relay/internal/config"
	"github.com/hook-relay/hook-relay/internal/proxy/retrypolicy"
	"github.com/hook-relay/hook-relay/internal/routing"
	"github.com/hook-relay/hook-relay/internal/version"
)

// ConfigSource 提供当前生效的配置快照。
type ConfigSource interface {
	Current() *config.Config
}

// RegisterStatusRoutes 暴露 /-/status 与 /-/strategies/:mode 诊断接口，
// 供运维确认当前后端、路由变体、重试策略与策略表。
func RegisterStatusRoutes(app *fiber.App, source ConfigSource) {
	if app == nil || source == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(encodeStatus(source.Current()))
	})

	app.Get("/-/strategies/:mode", func(c fiber.Ctx) error {
		token := strings.ToLower(strings.TrimSpace(c.Params("mode")))
		if token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "mode_required"})
		}
		mode := routing.ParseMode(token)
		payload := encodeStrategy(mode)
		payload.Recognized = mode.String() == token
		return c.JSON(payload)
	})
}

type statusPayload struct {
	Version           string            `json:"version"`
	BaseURLConfigured bool              `json:"base_url_configured"`
	BackendHost       string            `json:"backend_host,omitempty"`
	RoutingVariant    string            `json:"routing_variant"`
	RetryPolicy       string            `json:"retry_policy"`
	Policies          []policyPayload   `json:"policies"`
	Strategies        []strategyPayload `json:"strategies"`
}

type policyPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

type strategyPayload struct {
	Mode       string `json:"mode"`
	Primary    string `json:"primary"`
	Fallback   string `json:"fallback,omitempty"`
	Recognized bool   `json:"recognized,omitempty"`
}

func encodeStatus(cfg *config.Config) statusPayload {
	var backend config.BackendConfig
	if cfg != nil {
		backend = cfg.Backend
	}
	active := backend.Policy().Name

	payload := statusPayload{
		Version:        version.Full(),
		RoutingVariant: string(backend.Variant()),
		RetryPolicy:    active,
		Policies:       encodePolicies(retrypolicy.List(), active),
	}
	if base, ok := backend.BaseEndpoint(); ok {
		payload.BaseURLConfigured = true
		payload.BackendHost = base.Host
	}
	for _, mode := range routing.Modes() {
		payload.Strategies = append(payload.Strategies, encodeStrategy(mode))
	}
	return payload
}

func encodePolicies(policies []retrypolicy.Policy, active string) []policyPayload {
	if len(policies) == 0 {
		return nil
	}
	result := make([]policyPayload, 0, len(policies))
	for _, p := range policies {
		result = append(result, policyPayload{
			Name:        p.Name,
			Description: p.Description,
			Active:      p.Name == active,
		})
	}
	return result
}

func encodeStrategy(mode routing.Mode) strategyPayload {
	s := routing.StrategyFor(mode)
	return strategyPayload{
		Mode:     mode.String(),
		Primary:  string(s.Primary),
		Fallback: string(s.Fallback),
	}
}
