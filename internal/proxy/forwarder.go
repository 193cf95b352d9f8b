package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/hook-relay/hook-relay/internal/routing"
	"github.com/hook-relay/hook-relay/internal/server"
)

// Caller performs one forward attempt. The dispatcher only depends on this
// contract so tests can substitute a scripted backend.
type Caller interface {
	Forward(ctx context.Context, base *url.URL, candidate routing.Candidate, req *Request) (*http.Response, error)
}

// Forwarder sends a single attempt through the shared upstream client. It
// never retries; redirects are followed by the client.
type Forwarder struct {
	client *http.Client
}

// NewForwarder wraps the shared upstream client.
func NewForwarder(client *http.Client) *Forwarder {
	if client == nil {
		client = http.DefaultClient
	}
	return &Forwarder{client: client}
}

// Forward builds the outbound request for one candidate and executes it.
func (f *Forwarder) Forward(ctx context.Context, base *url.URL, candidate routing.Candidate, req *Request) (*http.Response, error) {
	if base == nil {
		return nil, errors.New("base url is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	outbound, err := http.NewRequestWithContext(ctx, req.Method, TargetURL(base, candidate.Path, req.RawQuery), req.NewBody())
	if err != nil {
		return nil, err
	}
	// hop-by-hop 头不透传，其余请求头原样复制。
	server.CopyHeaders(outbound.Header, req.Header)
	outbound.Host = base.Host

	return f.client.Do(outbound)
}

// TargetURL joins base, backend path and the inbound raw query. The query is
// appended byte-for-byte.
func TargetURL(base *url.URL, backendPath, rawQuery string) string {
	target := strings.TrimRight(base.String(), "/") + backendPath
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}
