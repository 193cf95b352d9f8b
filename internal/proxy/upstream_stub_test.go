package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// recordedRequest 捕获后端收到的每个请求，便于断言转发行为。
type recordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Host     string
	Headers  http.Header
	Body     []byte
}

// upstreamStub 模拟后端：按路径返回预设响应，未配置的路径返回 404 JSON。
type upstreamStub struct {
	ts  *httptest.Server
	URL *url.URL

	mu       sync.Mutex
	requests []recordedRequest
	replies  map[string]stubReply
}

type stubReply struct {
	status  int
	body    string
	headers map[string]string
}

func newUpstreamStub(t *testing.T, replies map[string]stubReply) *upstreamStub {
	t.Helper()

	stub := &upstreamStub{replies: replies}
	stub.ts = httptest.NewServer(http.HandlerFunc(stub.serve))
	t.Cleanup(stub.ts.Close)

	parsed, err := url.Parse(stub.ts.URL)
	if err != nil {
		t.Fatalf("parse stub url: %v", err)
	}
	stub.URL = parsed
	return stub
}

func (s *upstreamStub) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Host:     r.Host,
		Headers:  r.Header.Clone(),
		Body:     body,
	})
	reply, ok := s.replies[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":404,"message":"The requested webhook is not registered."}`)
		return
	}
	for k, v := range reply.headers {
		w.Header().Set(k, v)
	}
	status := reply.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply.body)
}

func (s *upstreamStub) Requests() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}
