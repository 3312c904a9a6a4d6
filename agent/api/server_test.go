package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanpawarit/chative-retail-assistant/agent/agents/assistant"
	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
	"github.com/tanpawarit/chative-retail-assistant/pkg/errx"
)

type fakeAssistant struct {
	requests []assistant.TurnRequest
	cleared  map[string]bool
	history  []statex.Message
	ids      []string
	listErr  error
	metrics  contractx.MetricsSnapshot
}

func (f *fakeAssistant) ProcessMessage(_ context.Context, req assistant.TurnRequest) assistant.TurnResult {
	f.requests = append(f.requests, req)
	return assistant.TurnResult{
		Response:  "echo: " + req.Text,
		SessionID: "s1",
		Intent:    statex.IntentDirect,
		ToolCalls: []statex.ToolCallRecord{},
	}
}

func (f *fakeAssistant) ClearSession(_ context.Context, id string) bool {
	return f.cleared[id]
}

func (f *fakeAssistant) GetHistory(context.Context, string) []statex.Message {
	return f.history
}

func (f *fakeAssistant) ListSessions(context.Context) ([]string, error) {
	return f.ids, f.listErr
}

func (f *fakeAssistant) GetMetrics(context.Context) contractx.MetricsSnapshot {
	return f.metrics
}

func newTestServer(t *testing.T, cfg Config, a Assistant, metrics http.Handler) http.Handler {
	t.Helper()

	s, err := New(cfg, a, metrics)
	require.NoError(t, err)
	return s.Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresAssistant(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	require.Error(t, err)
}

func TestChat(t *testing.T) {
	fake := &fakeAssistant{}
	h := newTestServer(t, Config{}, fake, nil)

	rec := do(t, h, http.MethodPost, "/v1/chat", `{"message":"show laptops","session_id":"s1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var res assistant.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "echo: show laptops", res.Response)
	assert.Equal(t, statex.IntentDirect, res.Intent)
	require.Len(t, fake.requests, 1)
	assert.Equal(t, "s1", fake.requests[0].SessionID)
}

func TestChatRejectsBadBody(t *testing.T) {
	h := newTestServer(t, Config{}, &fakeAssistant{}, nil)

	for _, body := range []string{"", "{not json"} {
		rec := do(t, h, http.MethodPost, "/v1/chat", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestSessions(t *testing.T) {
	fake := &fakeAssistant{
		ids:     []string{"a", "b"},
		cleared: map[string]bool{"a": true},
		history: []statex.Message{{Role: statex.RoleUser, Content: "hi"}},
	}
	h := newTestServer(t, Config{}, fake, nil)

	rec := do(t, h, http.MethodGet, "/v1/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessions":["a","b"]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/sessions/a/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_id":"a","messages":[{"role":"user","content":"hi"}]}`, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/v1/sessions/a", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/v1/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSessionsMapsStoreErrors(t *testing.T) {
	fake := &fakeAssistant{listErr: errx.WrapRedis(assert.AnError)}
	h := newTestServer(t, Config{}, fake, nil)

	rec := do(t, h, http.MethodGet, "/v1/sessions", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), errx.RedisErrorMessage)
}

func TestMetricsEndpoints(t *testing.T) {
	fake := &fakeAssistant{metrics: contractx.MetricsSnapshot{TotalQueries: 2, RecentActivity: []contractx.Activity{}}}
	prom := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# prometheus"))
	})
	h := newTestServer(t, Config{}, fake, prom)

	rec := do(t, h, http.MethodGet, "/v1/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_queries":2`)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, "# prometheus", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, Config{RateLimitPerMinute: 1, RateLimitBurst: 2}, &fakeAssistant{}, nil)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/metrics", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/metrics", "").Code)

	rec := do(t, h, http.MethodGet, "/v1/metrics", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// health checks are not limited
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", clientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", clientIP(req))
}
