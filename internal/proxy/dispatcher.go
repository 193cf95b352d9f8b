package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/hook-relay/hook-relay/internal/proxy/retrypolicy"
	"github.com/hook-relay/hook-relay/internal/routing"
)

// maxDrainBytes 限制丢弃响应时读取的字节数，方便连接复用。
const maxDrainBytes = 64 * 1024

// Target 描述一次分发：后端地址、endpoint、路由模式以及生效的重试判定。
type Target struct {
	Base     *url.URL
	Endpoint routing.EndpointID
	Mode     routing.Mode
	Policy   retrypolicy.Policy
}

// Attempt 记录单次尝试的结果，供日志与测试断言。
type Attempt struct {
	Candidate routing.Candidate
	Status    int
	Err       error
	// FellBack 表示该尝试被判定为需要回退到下一个候选。
	FellBack bool
}

// Result 是分发的最终结果。Failure 非空表示候选已耗尽且最后一次为非 200，
// 此时 Response 即 Failure.Response，应原样交付。
type Result struct {
	Response *http.Response
	Attempts []Attempt
	Failure  *UpstreamFailure
}

// Dispatcher 顺序执行候选尝试。它不持有任何请求级状态，可被并发请求共享。
type Dispatcher struct {
	caller Caller
	logger *logrus.Logger
}

// NewDispatcher 创建 Dispatcher；logger 为空时使用 logrus 标准 logger。
func NewDispatcher(caller Caller, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{caller: caller, logger: logger}
}

// Dispatch 按路由模式决定的顺序转发请求：
//   - 200 立即返回；
//   - 非 200 且存在后备候选并命中重试判定时，关闭响应并尝试后备；
//   - 传输失败且存在后备时尝试后备，后备也失败则只返回后备的错误；
//   - 最后一个候选的结果总是最终结果。
//
// ctx 被取消后不会再发起新的尝试。
func (d *Dispatcher) Dispatch(ctx context.Context, target Target, req *Request) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if target.Policy.ShouldRetry == nil {
		target.Policy = retrypolicy.Default()
	}

	candidates := routing.Plan(target.Mode, target.Endpoint)
	result := &Result{Attempts: make([]Attempt, 0, len(candidates))}
	entry := d.logger.WithFields(logrus.Fields{
		"endpoint_id":  string(target.Endpoint),
		"routing_mode": target.Mode.String(),
		"retry_policy": target.Policy.Name,
	})

	var lastErr error
	for i, candidate := range candidates {
		if i > 0 {
			if err := ctx.Err(); err != nil {
				return result, &TransportError{Candidate: candidate, Err: err}
			}
		}
		hasFallback := i < len(candidates)-1
		attempt := Attempt{Candidate: candidate}

		resp, err := d.caller.Forward(ctx, target.Base, candidate, req)
		d.logAttempt(entry, i+1, candidate, resp, err)
		if err != nil {
			attempt.Err = err
			lastErr = &TransportError{Candidate: candidate, Err: err}
			if hasFallback && ctx.Err() == nil {
				attempt.FellBack = true
				result.Attempts = append(result.Attempts, attempt)
				d.logFallback(entry, candidate, candidates[i+1], 0, err)
				continue
			}
			result.Attempts = append(result.Attempts, attempt)
			return result, lastErr
		}

		attempt.Status = resp.StatusCode
		if resp.StatusCode == http.StatusOK {
			result.Attempts = append(result.Attempts, attempt)
			result.Response = resp
			return result, nil
		}

		if hasFallback && target.Policy.ShouldRetry(resp) {
			attempt.FellBack = true
			result.Attempts = append(result.Attempts, attempt)
			discard(resp)
			d.logFallback(entry, candidate, candidates[i+1], resp.StatusCode, nil)
			continue
		}

		result.Attempts = append(result.Attempts, attempt)
		result.Response = resp
		result.Failure = &UpstreamFailure{Candidate: candidate, Status: resp.StatusCode, Response: resp}
		return result, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no candidate attempted")
	}
	return result, lastErr
}

func (d *Dispatcher) logAttempt(entry *logrus.Entry, n int, candidate routing.Candidate, resp *http.Response, err error) {
	fields := logrus.Fields{
		"action":        "proxy_attempt",
		"attempt":       n,
		"upstream_path": candidate.Path,
	}
	if resp != nil {
		fields["upstream_status"] = resp.StatusCode
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	entry.WithFields(fields).Debug("proxy_attempt")
}

func (d *Dispatcher) logFallback(entry *logrus.Entry, from, to routing.Candidate, status int, err error) {
	fields := logrus.Fields{
		"action":          "proxy_fallback",
		"from":            from.Path,
		"to":              to.Path,
		"upstream_status": status,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	entry.WithFields(fields).Warn("proxy_fallback")
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()
}
