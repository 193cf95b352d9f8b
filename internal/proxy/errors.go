package proxy

import (
	"fmt"
	"net/http"

	"github.com/hook-relay/hook-relay/internal/routing"
)

// Fixed bodies of responses produced by the relay itself.
const (
	MessageEndpointMissing = "no workflow ID provided"
	MessageBaseURLMissing  = "base URL not configured"
	MessageUpstreamFailed  = "upstream request failed"
)

// TransportError 表示转发调用本身未能完成（连接失败、超时、取消等）。
type TransportError struct {
	Candidate routing.Candidate
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("forward %s: %v", e.Candidate.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UpstreamFailure 表示一次尝试拿到了非 200 响应。候选耗尽时，
// Response 原样交付给调用方，不会被替换为合成的 5xx。
type UpstreamFailure struct {
	Candidate routing.Candidate
	Status    int
	Response  *http.Response
}

func (e *UpstreamFailure) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.Candidate.Path, e.Status)
}
