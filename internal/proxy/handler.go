package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/hook-relay/hook-relay/internal/config"
	"github.com/hook-relay/hook-relay/internal/logging"
	"github.com/hook-relay/hook-relay/internal/routing"
	"github.com/hook-relay/hook-relay/internal/server"
)

// ConfigSource 提供当前生效的配置快照，热加载时快照整体替换。
type ConfigSource interface {
	Current() *config.Config
}

// Handler 负责 “校验配置 → 分类请求 → 分发 → 写回响应” 的全流程，
// 对外暴露 Fiber handler，内部复用共享的 Dispatcher。
type Handler struct {
	dispatcher *Dispatcher
	source     ConfigSource
	logger     *logrus.Logger
}

// NewHandler constructs a proxy handler around a dispatcher and config source.
func NewHandler(dispatcher *Dispatcher, source ConfigSource, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		dispatcher: dispatcher,
		source:     source,
		logger:     logger,
	}
}

// Handle 处理一次入站请求。BaseURL 缺失先于 endpoint 校验，两者都不会触发任何上游调用。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)
	entry := logging.WithRequest(h.logger, requestID)

	var backend config.BackendConfig
	if cfg := h.source.Current(); cfg != nil {
		backend = cfg.Backend
	}

	base, ok := backend.BaseEndpoint()
	if !ok {
		entry.WithField("action", "proxy").Error("base_url_missing")
		return h.writeText(c, fiber.StatusInternalServerError, MessageBaseURLMissing)
	}

	req := requestFromFiber(c)
	variant := backend.Variant()
	cls := routing.Classify(variant, req.Path, req.RawQuery)
	policy := backend.Policy()
	entry = entry.WithFields(logging.RequestFields(string(cls.EndpointID), cls.Mode.String(), string(variant), policy.Name))

	if cls.EndpointID == "" {
		entry.WithFields(logrus.Fields{"action": "proxy", "path": req.Path}).Warn("endpoint_missing")
		return h.writeText(c, fiber.StatusBadRequest, MessageEndpointMissing)
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := h.dispatcher.Dispatch(ctx, Target{
		Base:     base,
		Endpoint: cls.EndpointID,
		Mode:     cls.Mode,
		Policy:   policy,
	}, req)
	if err != nil {
		h.logResult(entry, result, 0, started, err)
		return h.writeText(c, fiber.StatusBadGateway, MessageUpstreamFailed)
	}
	defer result.Response.Body.Close()

	return h.stream(c, entry, result, started)
}

func (h *Handler) stream(c fiber.Ctx, entry *logrus.Entry, result *Result, started time.Time) error {
	resp := Finalize(result.Response)
	copyResponseHeaders(c, resp.Header)
	c.Status(resp.StatusCode)

	if c.Method() == http.MethodHead {
		h.logResult(entry, result, resp.StatusCode, started, nil)
		return nil
	}

	_, err := io.Copy(c.Response().BodyWriter(), resp.Body)
	h.logResult(entry, result, resp.StatusCode, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("proxy stream failed: %v", err))
	}
	return nil
}

func (h *Handler) writeText(c fiber.Ctx, status int, message string) error {
	c.Set("Cache-Control", CacheControlNoStore)
	c.Set("Pragma", PragmaNoCache)
	c.Set("Expires", ExpiresImmediately)
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(status).SendString(message)
}

func (h *Handler) logResult(entry *logrus.Entry, result *Result, status int, started time.Time, err error) {
	fields := logrus.Fields{
		"action":          "proxy",
		"upstream_status": status,
		"elapsed_ms":      time.Since(started).Milliseconds(),
	}
	if result != nil {
		fields["attempts"] = attemptSummary(result.Attempts)
		if n := len(result.Attempts); n > 0 {
			fields["upstream_path"] = result.Attempts[n-1].Candidate.Path
		}
		fields["exhausted"] = result.Failure != nil
	}
	if err != nil {
		fields["error"] = err.Error()
		if errors.Is(err, context.Canceled) {
			fields["cancelled"] = true
		}
		entry.WithFields(fields).Error("proxy_failed")
		return
	}
	entry.WithFields(fields).Info("proxy_complete")
}

func attemptSummary(attempts []Attempt) []string {
	out := make([]string, 0, len(attempts))
	for _, a := range attempts {
		if a.Err != nil {
			out = append(out, a.Candidate.Path+"=error")
			continue
		}
		out = append(out, fmt.Sprintf("%s=%d", a.Candidate.Path, a.Status))
	}
	return out
}

func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	c.Response().Header.SetNoDefaultContentType(true)
	for key, values := range headers {
		if server.IsHopByHopHeader(key) || http.CanonicalHeaderKey(key) == "Content-Length" {
			continue
		}
		for i, value := range values {
			if i == 0 {
				c.Set(key, value)
				continue
			}
			c.Response().Header.Add(key, value)
		}
	}
}
