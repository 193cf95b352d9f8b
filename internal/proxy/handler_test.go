package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hook-relay/hook-relay/internal/config"
	"github.com/hook-relay/hook-relay/internal/logging"
	"github.com/hook-relay/hook-relay/internal/server"
)

func newRelayApp(t *testing.T, backend config.BackendConfig) *fiber.App {
	t.Helper()

	logger := logging.Discard()
	store := config.NewStore(&config.Config{Backend: backend})
	dispatcher := NewDispatcher(NewForwarder(server.NewUpstreamClient(nil)), logger)
	handler := NewHandler(dispatcher, store, logger)

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Proxy:      handler,
		ListenPort: 5000,
	})
	require.NoError(t, err)
	return app
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second, FailOnTimeout: true})
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, string(body)
}

func assertNoCache(t *testing.T, resp *http.Response) {
	t.Helper()
	assert.Equal(t, CacheControlNoStore, resp.Header.Get("Cache-Control"))
	assert.Equal(t, PragmaNoCache, resp.Header.Get("Pragma"))
	assert.Equal(t, ExpiresImmediately, resp.Header.Get("Expires"))
}

func TestHandlerMissingBaseURL(t *testing.T) {
	app := newRelayApp(t, config.BackendConfig{})

	// 即便 endpoint 也缺失，仍应优先返回 500。
	for _, target := range []string{"/test-only/abc", "/"} {
		resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, target)
		assert.Equal(t, MessageBaseURLMissing, body)
		assertNoCache(t, resp)
	}
}

func TestHandlerMissingEndpoint(t *testing.T) {
	stub := newUpstreamStub(t, nil)
	app := newRelayApp(t, config.BackendConfig{BaseURL: stub.URL.String()})

	for _, target := range []string{"/", "/test-then-prod", "/test-then-prod/"} {
		resp, body := doRequest(t, app, httptest.NewRequest(http.MethodPost, target, nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
		assert.Equal(t, MessageEndpointMissing, body)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	}
	assert.Empty(t, stub.Requests(), "no backend call expected")
}

func TestHandlerTestThenProdFallsBack(t *testing.T) {
	stub := newUpstreamStub(t, map[string]stubReply{
		"/webhook/abc": {status: http.StatusOK, body: `{"ok":true}`, headers: map[string]string{
			"Content-Type":  "application/json",
			"Cache-Control": "max-age=600",
			"X-Backend":     "prod",
		}},
	})
	app := newRelayApp(t, config.BackendConfig{BaseURL: stub.URL.String()})

	req := httptest.NewRequest(http.MethodPost, "/test-then-prod/abc/extra?b=2&a=1", strings.NewReader("payload"))
	req.Header.Set("X-Trace", "t-1")
	resp, body := doRequest(t, app, req)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, body)
	assert.Equal(t, "prod", resp.Header.Get("X-Backend"))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assertNoCache(t, resp)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	calls := stub.Requests()
	require.Len(t, calls, 2)
	assert.Equal(t, "/webhook-test/abc", calls[0].Path)
	assert.Equal(t, "/webhook/abc", calls[1].Path)
	for _, call := range calls {
		assert.Equal(t, http.MethodPost, call.Method)
		assert.Equal(t, "b=2&a=1", call.RawQuery)
		assert.Equal(t, "payload", string(call.Body))
		assert.Equal(t, "t-1", call.Headers.Get("X-Trace"))
		assert.Equal(t, stub.URL.Host, call.Host)
	}
}

func TestHandlerTestOnlyDeliversRejectionVerbatim(t *testing.T) {
	stub := newUpstreamStub(t, map[string]stubReply{
		"/webhook-test/abc": {status: http.StatusConflict, body: "busy", headers: map[string]string{"Content-Type": "text/plain"}},
	})
	app := newRelayApp(t, config.BackendConfig{BaseURL: stub.URL.String()})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/TEST-ONLY/abc", nil))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "busy", body)
	assertNoCache(t, resp)
	require.Len(t, stub.Requests(), 1)
}

func TestHandlerUnknownModeUsesProduction(t *testing.T) {
	stub := newUpstreamStub(t, map[string]stubReply{
		"/webhook/abc": {status: http.StatusOK, body: "prod"},
	})
	app := newRelayApp(t, config.BackendConfig{BaseURL: stub.URL.String() + "/"})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/whatever/abc", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "prod", body)
	calls := stub.Requests()
	require.Len(t, calls, 1)
	assert.Equal(t, "/webhook/abc", calls[0].Path)
}

func TestHandlerJSONNotFoundPolicy(t *testing.T) {
	stub := newUpstreamStub(t, map[string]stubReply{
		"/webhook/abc":      {status: http.StatusOK, body: "prod"},
		"/webhook-test/xyz": {status: http.StatusInternalServerError, body: "boom"},
	})
	app := newRelayApp(t, config.BackendConfig{BaseURL: stub.URL.String(), RetryPolicy: "json-not-found"})

	// webhook-test/abc 未注册，stub 返回 {"code":404}，触发回退。
	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/test-then-prod/abc", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "prod", body)

	// 500 不满足判定条件，原样返回，不再尝试 production。
	resp, body = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/test-then-prod/xyz", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "boom", body)

	calls := stub.Requests()
	require.Len(t, calls, 3)
	assert.Equal(t, "/webhook-test/xyz", calls[2].Path)
}

func TestHandlerExhaustedReturnsLastResponse(t *testing.T) {
	stub := newUpstreamStub(t, nil)
	app := newRelayApp(t, config.BackendConfig{BaseURL: stub.URL.String()})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/prod-then-test/missing", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, `"code":404`)
	assertNoCache(t, resp)

	calls := stub.Requests()
	require.Len(t, calls, 2)
	assert.Equal(t, "/webhook/missing", calls[0].Path)
	assert.Equal(t, "/webhook-test/missing", calls[1].Path)
}

func TestHandlerTransportFailure(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	app := newRelayApp(t, config.BackendConfig{BaseURL: deadURL})
	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/test-then-prod/abc", nil))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, MessageUpstreamFailed, body)
	assertNoCache(t, resp)
}

func TestHandlerQueryFlagVariant(t *testing.T) {
	stub := newUpstreamStub(t, map[string]stubReply{
		"/webhook/abc": {status: http.StatusOK, body: "prod"},
	})
	app := newRelayApp(t, config.BackendConfig{BaseURL: stub.URL.String(), RoutingVariant: "query-flag"})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/abc?t&x=1", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "prod", body)

	resp, body = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/abc", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "prod", body)

	calls := stub.Requests()
	// 带 t：test 未注册返回 404 后回退 production；不带 t：production 直接成功。
	require.Len(t, calls, 3)
	assert.Equal(t, "/webhook-test/abc", calls[0].Path)
	assert.Equal(t, "t&x=1", calls[0].RawQuery)
	assert.Equal(t, "/webhook/abc", calls[1].Path)
	assert.Equal(t, "t&x=1", calls[1].RawQuery)
	assert.Equal(t, "/webhook/abc", calls[2].Path)
	assert.Empty(t, calls[2].RawQuery)
}
